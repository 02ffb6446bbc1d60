package errors

import (
	// Go Internal Packages
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so callers can map it to behavior
// (HTTP status, retryability) without matching on messages.
type Kind uint8

const (
	Other Kind = iota
	Invalid
	NotFound
	Conflict
	Untrusted
	Unavailable
	Internal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Untrusted:
		return "untrusted"
	case Unavailable:
		return "unavailable"
	case Internal:
		return "internal"
	default:
		return "other"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error. err may be nil.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether any error in err's chain matches target; re-exported
// so callers aliasing this package do not also need the stdlib errors.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// KindOf reports the kind of the outermost classified error in err's
// chain, or Other when the chain carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

type fieldError struct {
	field string
	msg   string
}

// ValidationErrors accumulates per-field validation failures so a caller
// sees every bad field at once instead of the first one found.
type ValidationErrors struct {
	fields []fieldError
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{}
}

func (v *ValidationErrors) Add(field, msg string) {
	v.fields = append(v.fields, fieldError{field: field, msg: msg})
}

// Err returns nil when no failures were recorded.
func (v *ValidationErrors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	parts := make([]string, len(v.fields))
	for i, f := range v.fields {
		parts[i] = fmt.Sprintf("%s: %s", f.field, f.msg)
	}
	return errors.New(strings.Join(parts, "; "))
}
