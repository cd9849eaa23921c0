package noteerr

import (
	"errors"
	"fmt"
)

// The engine reports every failure as one of the typed errors below so the
// HTTP layer can map failure classes to responses without string matching.

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	Msg      string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NotFound(resource, format string, args ...interface{}) error {
	return &NotFoundError{Resource: resource, Msg: fmt.Sprintf(format, args...)}
}

// NoOpError rejects operations that would change nothing, e.g. restoring the
// version that is already current. Distinct from an idempotent update, which
// silently succeeds.
type NoOpError struct {
	Msg string
}

func (e *NoOpError) Error() string { return e.Msg }

func NoOp(format string, args ...interface{}) error {
	return &NoOpError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidKindError marks operations applied to the wrong note kind, e.g. a
// split request against a followup note.
type InvalidKindError struct {
	Kind string
	Msg  string
}

func (e *InvalidKindError) Error() string { return e.Msg }

func InvalidKind(kind, format string, args ...interface{}) error {
	return &InvalidKindError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func Configuration(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// OracleError covers categorization oracle failures: transport errors,
// timeouts, and contract violations in the returned label list. Transient
// marks timeouts and 5xx-class failures the caller layer may retry once.
type OracleError struct {
	Msg       string
	Transient bool
	Err       error
}

func (e *OracleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *OracleError) Unwrap() error { return e.Err }

func Oracle(err error, transient bool, format string, args ...interface{}) error {
	return &OracleError{Msg: fmt.Sprintf(format, args...), Transient: transient, Err: err}
}

// StorageError wraps persistence-layer failures so they stay distinct from
// the engine's own taxonomy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

func IsNoOp(err error) bool {
	var t *NoOpError
	return errors.As(err, &t)
}

func IsInvalidKind(err error) bool {
	var t *InvalidKindError
	return errors.As(err, &t)
}

func IsConfiguration(err error) bool {
	var t *ConfigurationError
	return errors.As(err, &t)
}

func IsOracle(err error) bool {
	var t *OracleError
	return errors.As(err, &t)
}

// IsTransientOracle reports whether err is an oracle failure worth a single
// caller-side retry.
func IsTransientOracle(err error) bool {
	var t *OracleError
	return errors.As(err, &t) && t.Transient
}

func IsStorage(err error) bool {
	var t *StorageError
	return errors.As(err, &t)
}
