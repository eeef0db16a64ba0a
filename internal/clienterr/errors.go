package clienterr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthRejected         Kind = "auth_rejected"
	KindUnverifiedAccount    Kind = "unverified_account"
	KindSessionExpired       Kind = "session_expired"
	KindSendFailed           Kind = "send_failed"
	KindDirectoryUnavailable Kind = "directory_unavailable"
)

// ClientError is the boundary error type: every external-call failure is
// converted to one of the kinds above before it reaches the rendering layer.
type ClientError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// UserMessage is the short human-readable string shown to the user. Raw
// provider error text is only used as a fallback when no kind matched.
func (e *ClientError) UserMessage() string {
	return e.Message
}

func NewAuthRejectedError(err error) *ClientError {
	msg := "invalid credentials"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &ClientError{
		Kind:    KindAuthRejected,
		Message: msg,
		Err:     err,
	}
}

func NewUnverifiedAccountError() *ClientError {
	return &ClientError{
		Kind:    KindUnverifiedAccount,
		Message: "please check your email and verify your account before logging in",
	}
}

func NewSessionExpiredError() *ClientError {
	return &ClientError{
		Kind:    KindSessionExpired,
		Message: "your session has expired, please log in again",
	}
}

func NewSendFailedError(err error) *ClientError {
	return &ClientError{
		Kind:    KindSendFailed,
		Message: "message could not be sent",
		Err:     err,
	}
}

func NewDirectoryUnavailableError(err error) *ClientError {
	return &ClientError{
		Kind:    KindDirectoryUnavailable,
		Message: "member list is currently unavailable",
		Err:     err,
	}
}

// KindOf extracts the kind from an error chain, or "" if no ClientError is
// present.
func KindOf(err error) Kind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	return ""
}
