package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRateLimited         = errors.New("rate limited")
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrServerError         = errors.New("server error")
	ErrSessionExpired      = errors.New("session expired")
	ErrRoomError           = errors.New("room error")
	ErrConflictOnWrite     = errors.New("conflict on write")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrSecretNotFound      = errors.New("secret not found")
	ErrNoSession           = errors.New("no active session")
	ErrEmptyComment        = errors.New("comment content is empty")
	ErrRoomAlreadyObserved = errors.New("room already observed")
	ErrRequestRejected     = errors.New("request rejected")
	ErrSessionSuperseded   = errors.New("session replaced during renewal")
)

// APIError is a failed backend response. errors.Is matches it against its Kind.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Kind
}
