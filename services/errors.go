package services

import "errors"

// ErrorKind is a stable machine-readable classification of a domain failure
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindUnauthenticated   ErrorKind = "UNAUTHENTICATED"
	KindConflict          ErrorKind = "CONFLICT"
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	KindUnavailable       ErrorKind = "UNAVAILABLE"
)

// DomainError carries a stable kind plus a human-readable message.
// Every failure surfaced by the service layer is one of these; controllers
// map kinds onto HTTP statuses.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewValidationError reports malformed or missing user input
func NewValidationError(message string) *DomainError {
	return &DomainError{Kind: KindValidation, Message: message}
}

// NewNotFoundError reports a referenced entity that does not exist
func NewNotFoundError(message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: message}
}

// NewForbiddenError reports an authenticated actor lacking permission
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Kind: KindForbidden, Message: message}
}

// NewConflictError reports a uniqueness or business-rule conflict
func NewConflictError(message string) *DomainError {
	return &DomainError{Kind: KindConflict, Message: message}
}

// NewInsufficientStockError reports a consumption request exceeding available stock
func NewInsufficientStockError(message string) *DomainError {
	return &DomainError{Kind: KindInsufficientStock, Message: message}
}

// NewUnavailableError reports a transient infrastructure failure; callers may retry
func NewUnavailableError(message string) *DomainError {
	return &DomainError{Kind: KindUnavailable, Message: message}
}

// AsDomainError unwraps err into a DomainError, or nil if it is not one
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}
