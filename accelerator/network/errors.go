package network

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrFileNotFound is returned by Stat when the file does not exist in the project.
var ErrFileNotFound = errors.New("file not found")

// APIError is a 4xx or 5xx response of the Accelerator API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("accelerator api error: HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError is a request that never produced a response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func unwrapError(resp *http.Response) error {
	errorResp, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return &APIError{StatusCode: resp.StatusCode, Body: string(errorResp)}
}

func isErrorStatus(statusCode int) bool {
	return statusCode >= 400 && statusCode < 600
}
