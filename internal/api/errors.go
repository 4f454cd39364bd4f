package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind tells apart the ways a request can fail.
type Kind int

const (
	// KindNetwork means no response arrived: connection refused, reset, DNS.
	KindNetwork Kind = iota + 1
	// KindTimeout means the request was cut off by the client timeout or
	// by cancellation of the caller's context.
	KindTimeout
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP
	// KindDecode means a 2xx response body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Kind   Kind
	Method string
	URL    string
	// Status and StatusText are set for KindHTTP.
	Status     int
	StatusText string
	// Code and Message come from a {"code","message"} error body.
	Code    string
	Message string
	// Body is the raw response body, if any was read.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		msg := fmt.Sprintf("API error: %d %s", e.Status, e.StatusText)
		if e.Message != "" {
			msg += ": " + e.Message
		}
		return msg
	case KindTimeout:
		return fmt.Sprintf("request aborted or timed out: %s %s", e.Method, e.URL)
	case KindDecode:
		return fmt.Sprintf("invalid response from %s %s: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorBody is the JSON error shape written by taskd.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newHTTPError(method, url string, resp *http.Response, body []byte) *Error {
	e := &Error{
		Kind:       KindHTTP,
		Method:     method,
		URL:        url,
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Body:       string(body),
	}
	if isJSON(resp) {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			e.Code = eb.Code
			e.Message = eb.Message
		}
	}
	return e
}

func newTransportError(method, url string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Method: method, URL: url, Err: err}
}

func isJSON(resp *http.Response) bool {
	return strings.Contains(resp.Header.Get("Content-Type"), "application/json")
}
