package errs

import (
	"fmt"
	"time"
)

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

// ValidationError is a client input problem. It never reaches the dispatcher.
type ValidationError struct {
	ErrorMessage
}

type NotFoundError struct {
	ErrorMessage
}

// ExternalServiceError is any failure of a capability backend: network error,
// non-2xx status, non-zero process exit or output that could not be parsed.
type ExternalServiceError struct {
	ErrorMessage
	Service   string
	Status    int
	Transient bool
	Err       error
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// TimeoutError means a backend did not answer within its budget.
type TimeoutError struct {
	ErrorMessage
	Service string
	Budget  time.Duration
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewExternalServiceError(service, message string, transient bool, err error) *ExternalServiceError {
	return &ExternalServiceError{
		ErrorMessage: ErrorMessage{Message: message},
		Service:      service,
		Transient:    transient,
		Err:          err,
	}
}

// NewStatusError records the HTTP status a backend answered with.
// 429 and 5xx are treated as transient.
func NewStatusError(service string, status int, message string) *ExternalServiceError {
	return &ExternalServiceError{
		ErrorMessage: ErrorMessage{Message: message},
		Service:      service,
		Status:       status,
		Transient:    status == 429 || status >= 500,
	}
}

func NewTimeoutError(service string, budget time.Duration) *TimeoutError {
	return &TimeoutError{
		ErrorMessage: ErrorMessage{
			Message: fmt.Sprintf("Request timeout. %s did not respond within %s.", service, budget),
		},
		Service: service,
		Budget:  budget,
	}
}
