package users

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserDisabled        = errors.New("user disabled")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailRegistered     = errors.New("email already registered")
	ErrUnknownRole         = errors.New("unknown role")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrInvalidEmailAddress = errors.New("invalid email address")
)
