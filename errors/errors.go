package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrMalformedRegistration = fmt.Errorf("malformed connection registration")
	ErrUnknownRecipient      = fmt.Errorf("unknown recipient")
	ErrInvalidMessage        = fmt.Errorf("invalid message")
	ErrPersistence           = fmt.Errorf("persistence failure")
	ErrDeliveryFailure       = fmt.Errorf("delivery failure")

	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrSendBufferFull   = fmt.Errorf("connection send buffer full")

	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrInvalidToken      = fmt.Errorf("invalid or expired token")
	ErrTokenGeneration   = fmt.Errorf("token generation failed")
)
