// Package logging provides the two logging surfaces the pipeline uses: a
// durable per-run log file and leveled console output.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunLogger manages the append-only log file for one generation or
// extraction run.
type RunLogger struct {
	runID     string
	logFile   *os.File
	mutex     sync.Mutex
	startTime time.Time
}

var (
	currentLogger *RunLogger
	loggerMutex   sync.Mutex
)

// StartRunLogging creates run.log under runDir and installs it as the
// current logger.
func StartRunLogging(runDir, runID string) (*RunLogger, error) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if currentLogger != nil {
		currentLogger.Close()
	}

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	logPath := filepath.Join(runDir, "run.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &RunLogger{
		runID:     runID,
		logFile:   logFile,
		startTime: time.Now(),
	}
	currentLogger = logger
	logger.writeHeader()

	return logger, nil
}

// GetCurrentLogger returns the active run logger, or nil if none is set.
func GetCurrentLogger() *RunLogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	return currentLogger
}

// Log writes a formatted message to the run log.
func (r *RunLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	elapsed := time.Since(r.startTime).Round(time.Millisecond)
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [+%v] %s\n", timestamp, elapsed, message)
	r.logFile.WriteString(line)
	r.logFile.Sync()
}

// LogSection writes a banner-delimited section header.
func (r *RunLogger) LogSection(title string) {
	if r == nil {
		return
	}
	sep := strings.Repeat("=", 80)
	r.Log("%s", sep)
	r.Log("= %s", title)
	r.Log("%s", sep)
}

// LogRequest records an outbound LLM call.
func (r *RunLogger) LogRequest(tag, model, prompt string) {
	if r == nil {
		return
	}
	r.LogSection(fmt.Sprintf("LLM REQUEST - %s", tag))
	r.Log("Model: %s", model)
	r.Log("Prompt length: %d characters", len(prompt))
}

// LogResponse records an inbound LLM response.
func (r *RunLogger) LogResponse(tag, response string) {
	if r == nil {
		return
	}
	r.LogSection(fmt.Sprintf("LLM RESPONSE - %s", tag))
	r.Log("Response length: %d characters", len(response))
}

// LogError records an error with its calling context.
func (r *RunLogger) LogError(context string, err error) {
	if r == nil {
		return
	}
	r.Log("ERROR in %s: %v", context, err)
}

// Close finalizes and closes the run log file.
func (r *RunLogger) Close() {
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.logFile != nil {
		elapsed := time.Since(r.startTime).Round(time.Millisecond)
		r.logFile.WriteString(fmt.Sprintf("run logging completed, total duration %v\n", elapsed))
		r.logFile.Sync()
		r.logFile.Close()
		r.logFile = nil
	}
}

func (r *RunLogger) writeHeader() {
	header := fmt.Sprintf("companion-keeper run log\nrun id: %s\nstart time: %s\nformat: [HH:MM:SS.mmm] [+duration] message\n\n",
		r.runID, r.startTime.Format("2006-01-02 15:04:05"))
	r.logFile.WriteString(header)
	r.logFile.Sync()
}
