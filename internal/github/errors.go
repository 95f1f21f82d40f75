package github

import "fmt"

// ErrorKind buckets every failure mode of the GitHub client into the small
// taxonomy the pipeline cares about.
type ErrorKind string

const (
	// KindAuthRequired means no token was supplied. Raised locally, before
	// any network call.
	KindAuthRequired ErrorKind = "auth_required"
	// KindNotFound maps 404.
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited maps 403, which GitHub uses for both rate limiting
	// and forbidden access.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUnauthorized maps 401 (bad or expired token).
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNetwork covers transport-level failures (DNS, reset, timeout).
	KindNetwork ErrorKind = "network"
	// KindGeneric covers every other non-2xx status and undecodable bodies.
	KindGeneric ErrorKind = "generic"
)

// APIError is the error type returned by every Client method. Check it with
// errors.As and switch on Kind.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // 0 for local and transport errors
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: %s: %s", e.Kind, e.Message)
}

// errAuthRequired is the shared local error for calls attempted without a token.
func errAuthRequired() *APIError {
	return &APIError{Kind: KindAuthRequired, Message: "GitHub token is required"}
}

// mapStatus converts a non-2xx response status into the taxonomy.
func mapStatus(status int, body string) *APIError {
	kind := KindGeneric
	switch status {
	case 404:
		kind = KindNotFound
	case 403:
		kind = KindRateLimited
	case 401:
		kind = KindUnauthorized
	}
	return &APIError{Kind: kind, StatusCode: status, Message: body}
}
