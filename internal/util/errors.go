package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrMagicLinkInvalid   = errors.New("magic link is invalid or expired")
	ErrSessionRevoked     = errors.New("auth session revoked")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrValidation         = errors.New("validation failed")

	ErrTestNotFound     = errors.New("test not found")
	ErrTestInactive     = errors.New("test is not available")
	ErrPurchaseRequired = errors.New("test must be purchased first")
	ErrCategoryNotFound = errors.New("category not found")
	ErrQuestionNotFound = errors.New("question not found")

	ErrSessionNotFound  = errors.New("exam session not found")
	ErrSessionExpired   = errors.New("exam session time is up")
	ErrSessionCompleted = errors.New("exam session already completed")
	ErrSessionActive    = errors.New("exam session still in progress")

	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrPaymentDisabled  = errors.New("payment gateway not configured")
)
