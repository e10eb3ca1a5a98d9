package llm

import (
	"errors"
	"fmt"
)

// Transport/auth failure classes surfaced from the model API. Always fatal
// to the current call; discriminate with errors.Is.
var (
	ErrAuthentication = errors.New("model API authentication failed")
	ErrRateLimit      = errors.New("model API rate limit exceeded")
	ErrUpstreamServer = errors.New("model API server error")
)

// StatusError carries the provider HTTP status and body alongside the
// mapped sentinel.
type StatusError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *StatusError) Error() string {
	if e.kind != nil {
		return fmt.Sprintf("%v: status %d: %s", e.kind, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("model API status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// MapStatusError maps provider status codes onto the failure taxonomy:
// 401 auth, 429 rate-limit, 5xx server. Other non-2xx codes pass through
// with context only.
func MapStatusError(statusCode int, body string) error {
	if len(body) > 500 {
		body = body[:500]
	}
	e := &StatusError{StatusCode: statusCode, Body: body}
	switch {
	case statusCode == 401 || statusCode == 403:
		e.kind = ErrAuthentication
	case statusCode == 429:
		e.kind = ErrRateLimit
	case statusCode >= 500:
		e.kind = ErrUpstreamServer
	}
	return e
}

// rawPrefixLen bounds how much raw model output a ParseError keeps for
// human diagnosis.
const rawPrefixLen = 500

// ParseError reports that no JSON could be recovered from model output.
type ParseError struct {
	RawPrefix string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no JSON object recoverable from model response: %q", e.RawPrefix)
}

func newParseError(raw string) *ParseError {
	if len(raw) > rawPrefixLen {
		raw = raw[:rawPrefixLen]
	}
	return &ParseError{RawPrefix: raw}
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
