package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ResponseError is a non-2xx answer from the API server.
type ResponseError struct {
	Status int
	Errors []string
	Msg    string
}

func newResponseError(status int, body []byte) *ResponseError {
	var payload struct {
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
		Msg string `json:"msg"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &ResponseError{Status: status, Msg: payload.Msg}
	for _, item := range payload.Errors {
		e.Errors = append(e.Errors, item.Msg)
	}
	return e
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message(http.StatusText(e.Status)))
}

// Message picks the first field error, then the envelope message, then fallback.
func (e *ResponseError) Message(fallback string) string {
	if len(e.Errors) > 0 && e.Errors[0] != "" {
		return e.Errors[0]
	}
	if e.Msg != "" {
		return e.Msg
	}
	return fallback
}

// IsUnauthorized reports a 401 answer.
func IsUnauthorized(err error) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.Status == http.StatusUnauthorized
}

// Message returns the server's message carried by err, or fallback.
func Message(err error, fallback string) string {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Message(fallback)
	}
	return fallback
}
