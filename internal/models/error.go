package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginLocked        = errors.New("login is temporarily locked")

	// Storage errors
	ErrStorageDisabled     = errors.New("attachment storage is not configured")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
)
