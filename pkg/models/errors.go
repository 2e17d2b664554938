package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

var ErrAccessDenied = errors.New("access denied")

// AccessDeniedError is returned when the caller's identity does not grant
// access to the requested patient scope. It is fatal and never retried.
type AccessDeniedError struct {
	Resource string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied to %s", e.Resource)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}

func NewAccessDeniedError(resource string) error {
	return &AccessDeniedError{Resource: resource}
}

var ErrBadRequest = errors.New("bad request")

type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Message)
}

func (e *BadRequestError) Unwrap() error {
	return ErrBadRequest
}

func NewBadRequestError(message string) error {
	return &BadRequestError{Message: message}
}

// ErrInputTooLarge is returned by the embeddings client when the input text
// exceeds the configured maximum length. Fatal, never retried.
var ErrInputTooLarge = errors.New("input text exceeds maximum length")
