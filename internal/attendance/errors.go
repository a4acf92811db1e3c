package attendance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-success response from the attendance API.
type APIError struct {
	StatusCode int
	// Status is the "status" field of the body ("error", "failed").
	Status string
	// Code is a structured error code, when the server sends one.
	Code string
	// Message is the human readable reason, shown to the user verbatim.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// ErrorCode returns the structured code. A 404 without a code is reported as
// an unknown event because every endpoint used here is keyed by event.
func (e *APIError) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	if e.StatusCode == http.StatusNotFound {
		return "event_not_found"
	}
	return ""
}

// Failed reports whether the server processed the image and found no usable
// face or no match.
func (e *APIError) Failed() bool {
	return e.Status == "failed"
}

// errorBody covers the error shapes the backend produces.
type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

func newAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{StatusCode: statusCode}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		// Proxies and debug pages answer with HTML.
		e.Message = http.StatusText(statusCode)
		return e
	}
	e.Status = eb.Status
	e.Code = eb.Code
	switch {
	case eb.Message != "":
		e.Message = eb.Message
	case eb.Error != "":
		e.Message = eb.Error
	default:
		e.Message = eb.Detail
	}
	return e
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
