package engine

import (
	"sync"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// progressTracker accumulates call counters and emits ProgressEvent
// snapshots (§4.6.11). Safe for concurrent use by worker-pool goroutines.
type progressTracker struct {
	mu         sync.Mutex
	phase      models.ProgressPhase
	total      int
	started    int
	completed  int
	failed     int
	aborted    int
	onProgress func(models.ProgressEvent)
}

func newProgressTracker(total int, onProgress func(models.ProgressEvent)) *progressTracker {
	return &progressTracker{total: total, onProgress: onProgress}
}

func (p *progressTracker) setPhase(phase models.ProgressPhase, message string) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
	p.emit(message)
}

func (p *progressTracker) callStarted() {
	p.mu.Lock()
	p.started++
	p.mu.Unlock()
	p.emit("")
}

func (p *progressTracker) callCompleted() {
	p.mu.Lock()
	p.completed++
	p.mu.Unlock()
	p.emit("")
}

func (p *progressTracker) callFailed() {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
	p.emit("")
}

// callAborted records a call cut short by cancellation (§5). Unlike
// callFailed, it does not count toward FailedCalls: a cancelled run is
// reported as cancelled, not as a run with failures.
func (p *progressTracker) callAborted() {
	p.mu.Lock()
	p.aborted++
	p.mu.Unlock()
	p.emit("")
}

func (p *progressTracker) retry(message string) {
	p.emit(message)
}

// notice emits a one-shot informational message without touching any call
// counter, e.g. the maxTotalChars clamp warning (§4.5).
func (p *progressTracker) notice(message string) {
	p.emit(message)
}

func (p *progressTracker) emit(message string) {
	if p.onProgress == nil {
		return
	}
	p.mu.Lock()
	event := models.ProgressEvent{
		Phase:          p.phase,
		Message:        message,
		StartedCalls:   p.started,
		CompletedCalls: p.completed,
		FailedCalls:    p.failed,
		ActiveCalls:    p.started - p.completed - p.failed - p.aborted,
		TotalCalls:     p.total,
	}
	p.mu.Unlock()
	p.onProgress(event)
}

// totalCalls implements §4.6.11's fixed call-count formula.
func totalCalls(appendMode bool, personaPacketCount, memoryPacketCount int, haveCandidates bool) int {
	total := 1 // preflight
	if !appendMode {
		total += personaPacketCount
		total++ // persona synthesis
	}
	total += memoryPacketCount
	if haveCandidates {
		total++ // memory synthesis
	}
	return total
}
