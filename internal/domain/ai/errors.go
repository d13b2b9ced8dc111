package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrUnsupportedProvider indicates the configured provider name is unknown.
var ErrUnsupportedProvider = errors.New("unsupported ai provider")
