package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an upstream call failed.
type Kind int

const (
	KindUpstream Kind = iota
	KindNotFound
	KindUnauthorized
	KindRateLimited
	KindTimeout
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "upstream"
	}
}

// UpstreamError is returned by every client for failed calls. Message and
// Details are safe to show to end users.
type UpstreamError struct {
	Kind    Kind
	Status  int
	Message string
	Details string
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s (%s", e.Message, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(", status %d", e.Status)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status a proxy should answer with for this failure.
func (e *UpstreamError) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindNetwork:
		return http.StatusInternalServerError
	}
	if e.Status >= 400 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// AsUpstream unwraps err into an *UpstreamError. Errors of any other type
// are reported as a generic upstream failure.
func AsUpstream(err error) *UpstreamError {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	return &UpstreamError{
		Kind:    KindUpstream,
		Message: "failed to fetch weather data",
		Details: err.Error(),
		Err:     err,
	}
}

// IsKind reports whether err is an UpstreamError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == kind
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindUpstream
	}
}
