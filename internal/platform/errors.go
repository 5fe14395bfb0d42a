package platform

import "fmt"

// RateLimitError reports that the platform asked us to slow down.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// ResponseError is a response-level failure: the platform answered, but
// with a server error status.
type ResponseError struct {
	StatusCode int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("bad response status %d", e.StatusCode)
}

// RequestError is a transport-level failure: the request never produced
// a usable response (connection reset, timeout, DNS).
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// NotFoundError reports that the requested item does not exist upstream.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.ID)
}
