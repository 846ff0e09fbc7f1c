package account

import (
	"errors"

	"github.com/safar/agrimarket/internal/auth"
)

var (
	ErrInvalidCode        = errors.New("invalid code")
	ErrExpiredCode        = errors.New("code has expired, request a new one")
	ErrAlreadyActive      = errors.New("account is already active")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is not active")
	ErrUpstream           = errors.New("notification delivery failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrWeakPassword       = auth.ErrWeakPassword
)
