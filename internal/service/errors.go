package service

import "errors"

// Sentinel errors for diary synthesis. Skips (no conversation, already exists)
// are Outcome values, not errors.
var (
	// ErrInvalidConfiguration indicates a malformed user setting such as a diary
	// time that is not HH:MM.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUpstreamSummarizer indicates the LLM call failed or returned unusable content.
	ErrUpstreamSummarizer = errors.New("upstream summarizer error")

	// ErrStorage indicates a read or write against the store failed.
	ErrStorage = errors.New("storage error")
)
