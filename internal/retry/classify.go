package retry

import "strings"

// Class is the retry decision for a failure message.
type Class int

const (
	// ClassTerminal failures stop the run; no recovery profile will help.
	ClassTerminal Class = iota
	// ClassRetryable failures are convergence-shaped; the next profile may
	// succeed.
	ClassRetryable
	// ClassCancelled failures are user cancellations; they always win over
	// escalation.
	ClassCancelled
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassCancelled:
		return "cancelled"
	}
	return "terminal"
}

// convergenceKeywords are substrings of engine error text that indicate a
// convergence-class failure. Matching free text is inherently fragile;
// structured error codes from the engine should replace this list if the
// engine interface can ever be changed.
var convergenceKeywords = []string{
	"newton",
	"diverg",
	"converg",
	"singular",
	"time step too small",
	"timestep too small",
	"gmin",
	"iteration limit",
	"max iterations",
}

// Classify decides whether an attempt's error message is a cancellation,
// a retryable convergence failure, or terminal. Pure function: no state,
// no side effects.
func Classify(msg string) Class {
	m := strings.ToLower(msg)
	if strings.Contains(m, "cancel") {
		return ClassCancelled
	}
	for _, kw := range convergenceKeywords {
		if strings.Contains(m, kw) {
			return ClassRetryable
		}
	}
	return ClassTerminal
}
