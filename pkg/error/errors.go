package error

import "net/http"

// GenericError is the contract every typed error in this package satisfies,
// so the REST layer and the recovery middleware can map errors to responses.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// SessionNotReadyError signals that an operation needs a ready session.
// Callers should prompt a reconnect instead of retrying blindly.
type SessionNotReadyError string

func (err SessionNotReadyError) Error() string {
	return string(err)
}

func (err SessionNotReadyError) ErrCode() string {
	return "SESSION_NOT_READY"
}

func (err SessionNotReadyError) StatusCode() int {
	return http.StatusConflict
}

type InvalidRecipientError string

func (err InvalidRecipientError) Error() string {
	return string(err)
}

func (err InvalidRecipientError) ErrCode() string {
	return "INVALID_RECIPIENT"
}

func (err InvalidRecipientError) StatusCode() int {
	return http.StatusBadRequest
}

type SendError string

func (err SendError) Error() string {
	return string(err)
}

func (err SendError) ErrCode() string {
	return "SEND_ERROR"
}

func (err SendError) StatusCode() int {
	return http.StatusInternalServerError
}

type WebhookError string

func (err WebhookError) Error() string {
	return string(err)
}

func (err WebhookError) ErrCode() string {
	return "WEBHOOK_ERROR"
}

func (err WebhookError) StatusCode() int {
	return http.StatusBadGateway
}

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}
