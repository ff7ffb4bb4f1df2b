package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer from the parking API.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Message turns err into text suitable for showing next to a form. Server
// messages win; anything else collapses to fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var msg interface{ UserMessage() string }
	if errors.As(err, &msg) && msg.UserMessage() != "" {
		return msg.UserMessage()
	}
	return fallback
}
