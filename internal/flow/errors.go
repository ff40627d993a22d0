package flow

import "errors"

var (
	ErrMissingFields   = errors.New("flow: name, email and phone are required")
	ErrInvalidEmail    = errors.New("flow: invalid email address")
	ErrIncompleteCode  = errors.New("flow: verification code must have 6 digits")
	ErrCodeMismatch    = errors.New("flow: verification code mismatch")
	ErrUnsupportedType = errors.New("flow: unsupported attachment type")
	ErrFileTooLarge    = errors.New("flow: attachment too large")
	ErrSubmitPending   = errors.New("flow: submission already pending")
	ErrWrongScreen     = errors.New("flow: operation not available on this screen")
	ErrInvalidSlot     = errors.New("flow: code slot out of range")
	ErrClosed          = errors.New("flow: session closed")
)
