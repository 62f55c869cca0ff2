package app

import "fmt"

// DomainError is a failure with a fixed HTTP mapping. The service layer
// returns them for expected conditions (validation, ownership, unavailable
// subsystems); mapError translates anything else to a generic 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *DomainError) String() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}
