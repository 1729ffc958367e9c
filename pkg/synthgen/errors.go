package synthgen

import "errors"

// Sentinel errors for common error conditions
var (
	// Template-related errors
	ErrUnknownTemplate      = errors.New("unknown template")
	ErrTemplateConstruction = errors.New("template construction failed")

	// Generation errors
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrGenerationPanic  = errors.New("generate panicked")

	// Run errors
	ErrInvalidConfig = errors.New("invalid config")
	ErrRunClosed     = errors.New("run closed")
)
