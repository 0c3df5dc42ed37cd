package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by its origin, which decides the HTTP outcome
// and whether a redelivery can succeed.
type Kind int

const (
	// Validation is bad caller input. Never retried.
	Validation Kind = iota
	// Auth is a credential or token failure against the gateway.
	Auth
	// Upstream is a non-success gateway response or a missing expected
	// field in an otherwise successful one.
	Upstream
	// Store is a record-store write failure. The notification sender may
	// redeliver, so a later attempt can still commit.
	Store
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Auth:
		return "auth"
	case Upstream:
		return "upstream"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the tagged error passed across component boundaries. Vendor
// carries the raw gateway or store message as diagnostic payload only;
// it must never drive control flow past the originating call.
type Error struct {
	Kind   Kind
	Msg    string
	Vendor string
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Vendor != "" {
		b.WriteString(": ")
		b.WriteString(e.Vendor)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf reports missing or malformed caller input. fields names the
// offending inputs for the client response.
func Validationf(fields []string, format string, args ...any) *Error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...), Fields: fields}
}

// Authf reports a failed credential exchange. vendor is the raw gateway
// response body, if any.
func Authf(err error, vendor, format string, args ...any) *Error {
	return &Error{Kind: Auth, Msg: fmt.Sprintf(format, args...), Vendor: vendor, Err: err}
}

// Upstreamf reports a failed or malformed gateway exchange.
func Upstreamf(err error, vendor, format string, args ...any) *Error {
	return &Error{Kind: Upstream, Msg: fmt.Sprintf(format, args...), Vendor: vendor, Err: err}
}

// Storef reports a record-store failure.
func Storef(err error, format string, args ...any) *Error {
	return &Error{Kind: Store, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind carried by err, unwrapping as needed.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// FieldsOf returns the validation field list carried by err, if any.
func FieldsOf(err error) []string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}
