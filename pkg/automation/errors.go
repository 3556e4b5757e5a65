package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies automation failures so that callers never have to match
// engine error text themselves. The adapter is the only layer allowed to
// inspect raw engine errors.
type Kind int

const (
	// KindOther is any engine error with no special handling; it is
	// reported verbatim to the user.
	KindOther Kind = iota
	// KindTimeout means a bounded wait expired before the element or URL
	// appeared.
	KindTimeout
	// KindSessionLost means the page or its browsing context is gone; the
	// owning session must be torn down and the user re-authenticated.
	KindSessionLost
	// KindFatal means the engine itself is unusable (startup failure).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindSessionLost:
		return "session_lost"
	case KindFatal:
		return "fatal"
	default:
		return "other"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("automation %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsTimeout(err error) bool {
	return kindOf(err) == KindTimeout
}

func IsSessionLost(err error) bool {
	return kindOf(err) == KindSessionLost
}

func kindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindOther
}

// lostMarkers are the engine error substrings that indicate a closed page or
// a torn-down browsing context.
var lostMarkers = []string{"closed", "context", "target"}

// classify wraps a raw engine error with its Kind. Timeout detection goes
// through context.DeadlineExceeded; everything the engine reports about a
// vanished page or context becomes KindSessionLost.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	kind := KindOther
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindSessionLost
	default:
		msg := strings.ToLower(err.Error())
		for _, marker := range lostMarkers {
			if strings.Contains(msg, marker) {
				kind = KindSessionLost
				break
			}
		}
	}

	return &Error{Kind: kind, Op: op, Err: err}
}
