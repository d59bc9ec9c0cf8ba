package domain

import "errors"

// Error kinds. Every domain error unwraps to exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)

// Error codes surfaced to API clients
const (
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeForbidden             = "FORBIDDEN"
	CodeValidation            = "VALIDATION_FAILED"
	CodeSeatUnavailable       = "SEAT_UNAVAILABLE"
	CodeTripStarted           = "TRIP_ALREADY_STARTED"
	CodeInvalidTransition     = "INVALID_STATUS_TRANSITION"
	CodeDuplicateRequest      = "DUPLICATE_REQUEST"
	CodeSeatCountMismatch     = "SEAT_COUNT_MISMATCH"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeBankAccountUnverified = "BANK_ACCOUNT_UNVERIFIED"
	CodeCapacityExceeded      = "CAPACITY_EXCEEDED"
)

// Error is a classified booking error
type Error struct {
	kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap returns the error kind so errors.Is(err, ErrConflict) works
func (e *Error) Unwrap() error { return e.kind }

// Kind returns the error kind
func (e *Error) Kind() error { return e.kind }

// NewError creates a classified error
func NewError(kind error, code, message string) *Error {
	return &Error{kind: kind, Code: code, Message: message}
}

// NotFoundError creates a NotFound error for the named entity
func NotFoundError(entity string) *Error {
	return NewError(ErrNotFound, CodeNotFound, entity+" not found")
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return NewError(ErrValidation, CodeValidation, message)
}

// ConflictError creates a generic conflict error
func ConflictError(message string) *Error {
	return NewError(ErrConflict, CodeConflict, message)
}

// NotFound
var (
	ErrTripNotFound          = NotFoundError("trip")
	ErrSeatMapNotFound       = NotFoundError("seat map")
	ErrTicketNotFound        = NotFoundError("ticket")
	ErrTicketRequestNotFound = NewError(ErrNotFound, CodeNotFound, "ticket request not found")
	ErrUserNotFound          = NotFoundError("user")
	ErrBankAccountNotFound   = NotFoundError("bank account")
)

// Conflict
var (
	ErrSeatAlreadyBooked      = NewError(ErrConflict, CodeSeatUnavailable, "seat already booked")
	ErrTripStarted            = NewError(ErrConflict, CodeTripStarted, "trip has already started")
	ErrInvalidTransition      = NewError(ErrConflict, CodeInvalidTransition, "invalid status transition")
	ErrDuplicateCancelRequest = NewError(ErrConflict, CodeDuplicateRequest, "a cancel request already exists for this ticket")
	ErrSeatCountMismatch      = NewError(ErrConflict, CodeSeatCountMismatch, "seat count cannot change after the ticket is issued")
	ErrInsufficientBalance    = NewError(ErrConflict, CodeInsufficientBalance, "insufficient balance")
	ErrBankAccountUnverified  = NewError(ErrConflict, CodeBankAccountUnverified, "bank account is not verified")
	ErrCapacityExceeded       = NewError(ErrConflict, CodeCapacityExceeded, "trip capacity out of range")
	ErrNoSeatOverlap          = ConflictError("requested seats do not belong to the ticket")
	ErrTicketNotConfirmed     = ConflictError("ticket is not confirmed")
	ErrRequestNotPending      = ConflictError("ticket request is no longer pending")
	ErrRequestHasTicket       = ConflictError("ticket request already issued a ticket")
	ErrRequestNotEditable     = ConflictError("ticket request can no longer be edited")
	ErrTripNotCompleted       = ConflictError("trip is not completed")
)

// Validation
var (
	ErrTripRequired       = ValidationError("trip_id is required")
	ErrTicketRequired     = ValidationError("ticket_id is required")
	ErrSeatsRequired      = ValidationError("at least one seat is required")
	ErrDuplicateSeat      = ValidationError("seats contain duplicates")
	ErrTicketTypeMismatch = ValidationError("ticket type does not match the trip")
	ErrInvalidAmount      = ValidationError("amount must be greater than zero")
	ErrAmountExceedsPrice = ValidationError("amount exceeds the ticket price")
	ErrInvalidTitle       = ValidationError("unknown title_request")
	ErrInvalidStatus      = ValidationError("unknown status")
)

// Forbidden
var (
	ErrNotOwner         = NewError(ErrForbidden, CodeForbidden, "ticket request belongs to another user")
	ErrApprovalRequired = NewError(ErrForbidden, CodeForbidden, "approving ticket requests requires the "+PermTicketRequestApprove+" permission")
	ErrUnauthenticated  = NewError(ErrForbidden, CodeForbidden, "authenticated principal required")
	ErrTicketNotOwned   = NewError(ErrForbidden, CodeForbidden, "ticket belongs to another user")
)

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a Conflict error
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
