package domain

import "errors"

var (
	// ErrInvalidPhoneFormat indicates the input is not a supported phone shape.
	ErrInvalidPhoneFormat = errors.New("invalid phone format")
	// ErrDuplicateRegistration indicates the phone is already in the registry, whatever its status.
	ErrDuplicateRegistration = errors.New("phone already registered")
	// ErrNotFound indicates an unknown phone or session.
	ErrNotFound = errors.New("resource not found")
	// ErrNotFree indicates a reservation attempt on a number that is no longer free.
	ErrNotFree = errors.New("number is not free")
	// ErrWrongState indicates an operation attempted outside its lifecycle state.
	ErrWrongState = errors.New("operation not allowed in current state")
	// ErrNotOwner indicates the actor is not the seller or buyer the operation requires.
	ErrNotOwner = errors.New("actor does not own the number")
	// ErrAuthenticationFailed indicates a wrong access phrase.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidState indicates a conversation state outside the enumerated set.
	ErrInvalidState = errors.New("invalid conversation state")
	// ErrDeliveryRejected indicates the transport refused a message for good (blocked chat, bad markup).
	ErrDeliveryRejected = errors.New("delivery rejected by transport")
)
