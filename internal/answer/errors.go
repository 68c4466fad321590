package answer

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure so callers and tests can branch on
// the cause instead of matching message strings.
type Kind string

const (
	// KindNotConfigured means no language-model client is available.
	KindNotConfigured Kind = "model_not_configured"

	// KindModelCall means the model collaborator failed or timed out.
	KindModelCall Kind = "model_call_failed"
)

// Error is a typed generation failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a generation error, or "" for other errors.
func KindOf(err error) Kind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

// RenderFailure maps a generation failure to the user-visible answer text.
// Model failures degrade to a visible message, never a crash or a 5xx.
func RenderFailure(err error) string {
	switch KindOf(err) {
	case KindNotConfigured:
		return "[Error generating response: the language model is not configured. Please contact your administrator.]"
	default:
		if cause := errors.Unwrap(err); cause != nil {
			err = cause
		}
		return fmt.Sprintf("[Error generating response: %v]", err)
	}
}
