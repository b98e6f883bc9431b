package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the service error taxonomy.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("conflict")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// DomainError pairs a sentinel error with a human-readable message.
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap lets errors.Is match the sentinel.
func (e *DomainError) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewInvalidStateError reports an operation that is illegal for the current status.
func NewInvalidStateError(current, attempted string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("cannot move from %s to %s", current, attempted),
	}
}

// NewUnauthorizedError reports an authentication or signature failure.
func NewUnauthorizedError(msg string) *DomainError {
	return &DomainError{Err: ErrUnauthorized, Message: msg}
}

// NewBadRequestError reports malformed or incomplete input.
func NewBadRequestError(msg string) *DomainError {
	return &DomainError{Err: ErrBadRequest, Message: msg}
}

// NewConflictError reports a write that collides with existing state.
func NewConflictError(msg string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: msg}
}

// NewProviderUnavailableError wraps the last provider failure after retries ran out.
func NewProviderUnavailableError(cause error) *DomainError {
	return &DomainError{
		Err:     ErrProviderUnavailable,
		Message: fmt.Sprintf("payment provider unavailable: %v", cause),
	}
}

// NewStoreUnavailableError wraps the last store failure after retries ran out.
func NewStoreUnavailableError(cause error) *DomainError {
	return &DomainError{
		Err:     ErrStoreUnavailable,
		Message: fmt.Sprintf("booking store unavailable: %v", cause),
	}
}

// IsDomainError reports whether err carries one of the taxonomy sentinels.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
