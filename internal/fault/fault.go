// Package fault classifies the failures the collector has to tell apart.
// Only Configuration and Invalid ever abort a whole request; every other
// kind is recovered locally by substituting a placeholder or skipping a
// cache write.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindTransientFetch Kind = "transient_fetch"
	KindAnalyzer       Kind = "analyzer"
	KindNotFound       Kind = "not_found"
	KindStore          Kind = "store"
	KindInvalid        Kind = "invalid"
)

// Sentinels usable with errors.Is.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrTransientFetch = &Error{Kind: KindTransientFetch}
	ErrAnalyzer       = &Error{Kind: KindAnalyzer}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrStore          = &Error{Kind: KindStore}
	ErrInvalid        = &Error{Kind: KindInvalid}
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work
// with errors.Is regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New wraps err with a kind and operation name. A nil err still yields an
// error so callers can report conditions that have no cause of their own.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an error of the given kind from a format string.
func Newf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or the
// empty Kind when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
