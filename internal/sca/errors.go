package sca

import "errors"

var (
	ErrNotFound             = errors.New("sca: not found")
	ErrInvalidState         = errors.New("sca: event not valid for current status")
	ErrValidation           = errors.New("sca: validation failed")
	ErrConflict             = errors.New("sca: concurrent modification")
	ErrTechnical            = errors.New("sca: technical error")
	ErrAuthenticationFailed = errors.New("sca: authentication failed")
)
