// Package bridgeerr provides typed internal errors for failures that never
// cross the wire as a JSON-RPC error envelope (certificate generation,
// port exhaustion, registry scan failures). Wire-facing errors use
// pkg/protocol's ErrorObject and fixed code table instead.
package bridgeerr

import "errors"

// Error type constants. Kept as plain strings (rather than an enum) so
// they serialize cleanly and read well in log lines.
const (
	ErrCertificate   = "certificate"
	ErrPortExhausted = "port_exhausted"
	ErrRegistryScan  = "registry_scan"
	ErrConfig        = "config"
	ErrInternal      = "internal"
)

// Error is a typed error with an optional wrapped cause.
type Error struct {
	Type    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Type + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Type + ": " + e.Message
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given type.
func New(typ, message string, cause error) *Error {
	return &Error{Type: typ, Message: message, Cause: cause}
}

func NewCertificateError(message string, cause error) *Error {
	return New(ErrCertificate, message, cause)
}

func NewPortExhaustedError(message string, cause error) *Error {
	return New(ErrPortExhausted, message, cause)
}

func NewRegistryScanError(message string, cause error) *Error {
	return New(ErrRegistryScan, message, cause)
}

func NewConfigError(message string, cause error) *Error {
	return New(ErrConfig, message, cause)
}

func NewInternalError(message string, cause error) *Error {
	return New(ErrInternal, message, cause)
}

func isType(err error, typ string) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type == typ
	}
	return false
}

func IsCertificate(err error) bool   { return isType(err, ErrCertificate) }
func IsPortExhausted(err error) bool { return isType(err, ErrPortExhausted) }
func IsRegistryScan(err error) bool  { return isType(err, ErrRegistryScan) }
func IsConfig(err error) bool        { return isType(err, ErrConfig) }
func IsInternal(err error) bool      { return isType(err, ErrInternal) }
