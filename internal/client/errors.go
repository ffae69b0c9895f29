package client

import (
	"errors"
	"fmt"
)

// AuthError is a 401 on an authenticated call: the token is no longer valid.
type AuthError struct {
	Method string
	Path   string
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s %s: unauthorized", e.Method, e.Path)
}

// PermissionError is a 403: the session is valid but the action is refused.
type PermissionError struct {
	Method string
	Path   string
	Detail string
}

func (e *PermissionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: forbidden: %s", e.Method, e.Path, e.Detail)
	}
	return fmt.Sprintf("%s %s: forbidden", e.Method, e.Path)
}

// ServiceError is any other non-success response or a transport failure.
// Status is 0 when no response was received.
type ServiceError struct {
	Method string
	Path   string
	Status int
	Detail string
	Err    error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidCredentials is returned by Login on a 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is wrapped by the ServiceError Register returns on a conflict.
	ErrUserExists = errors.New("username already exists")
)

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// Detail returns the server-provided detail of err when present,
// otherwise the error text.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var (
		ae *AuthError
		pe *PermissionError
		se *ServiceError
	)
	switch {
	case errors.As(err, &se) && se.Detail != "":
		return se.Detail
	case errors.As(err, &pe) && pe.Detail != "":
		return pe.Detail
	case errors.As(err, &ae) && ae.Detail != "":
		return ae.Detail
	}
	return err.Error()
}
