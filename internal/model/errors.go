package model

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid tweet url")
	ErrFetchFailed     = errors.New("tweet fetch failed")
	ErrFetchTimeout    = errors.New("tweet fetch timed out")
	ErrRenderFailed    = errors.New("card render failed")
	ErrDeliveryFailed  = errors.New("delivery failed")
	ErrAINotConfigured = errors.New("ai provider not configured")
)
