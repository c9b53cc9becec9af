// Package llm provides language model access for chat replies, metadata
// extraction and diary summaries.
package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrFatalAPI marks provider errors that retrying will not fix
// (billing, quota, rate limits, credentials).
var ErrFatalAPI = errors.New("fatal LLM API error")

var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
}

var fatalStatus = regexp.MustCompile(`\b(401|403)\b`)

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return fatalStatus.MatchString(msg)
}

func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}
