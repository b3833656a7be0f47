package llm

import (
	"fmt"
	"net/http"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
)

// Kind classifies a failed model call.
type Kind string

const (
	KindAuth      Kind = "auth"
	KindQuota     Kind = "quota"
	KindTransport Kind = "transport"
	KindUpstream  Kind = "upstream"
)

// CallError is a failed model call. errors.Is(err, common.ErrModelCall) holds for every CallError.
type CallError struct {
	Provider   string
	Kind       Kind
	StatusCode int    // 0 for transport failures
	Body       string // provider detail, truncated
	Err        error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{common.ErrModelCall}
	}
	return []error{common.ErrModelCall, e.Err}
}

// KindForStatus maps a non-2xx HTTP status to a failure kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindQuota
	default:
		return KindUpstream
	}
}

// StatusError builds the CallError for a provider that answered with a non-2xx status.
func StatusError(provider string, status int, body []byte) *CallError {
	return &CallError{
		Provider:   provider,
		Kind:       KindForStatus(status),
		StatusCode: status,
		Body:       truncate(string(body), 2048),
	}
}

// TransportError builds the CallError for a request that never got an answer.
func TransportError(provider string, err error) *CallError {
	return &CallError{Provider: provider, Kind: KindTransport, Err: err}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
