package engine

import "fmt"

// Aborted is the cancellation sentinel (§7). It is never surfaced as a
// failure — callers must check errors.Is(err, Aborted).
var Aborted = fmt.Errorf("generation run aborted")

// ProviderPreflightError wraps a failed preflight roundtrip (§4.6.3, §7).
type ProviderPreflightError struct {
	Err error
}

func (e *ProviderPreflightError) Error() string {
	return fmt.Sprintf("provider preflight failed: %v", e.Err)
}

func (e *ProviderPreflightError) Unwrap() error { return e.Err }

// StageExtractionError aggregates a stage's per-conversation failures into a
// fatal error when the whole stage produced nothing (§4.6.10).
type StageExtractionError struct {
	Stage  string
	Errors []string
}

func (e *StageExtractionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, summarizeErrors(e.Errors))
}

// SynthesisError wraps a fatal synthesis-stage failure (§4.6.10); the
// checkpoint remains intact so the run can be retried.
type SynthesisError struct {
	Stage string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis failed: %v", e.Stage, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// summarizeErrors renders the first 4 entries plus a "+N more" suffix, per
// the §7 propagation policy.
func summarizeErrors(errs []string) string {
	if len(errs) == 0 {
		return "no errors recorded"
	}
	n := len(errs)
	if n <= 4 {
		return joinLines(errs)
	}
	return fmt.Sprintf("%s (+%d more)", joinLines(errs[:4]), n-4)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "; "
		}
		out += l
	}
	return out
}
