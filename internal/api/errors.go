package api

import (
	"encoding/json"
	"io"
	"net/http"

	"taskman/internal/gateway"
)

// Error is a backend error response, classified into a gateway error kind.
type Error struct {
	Status int
	Detail string
	Kind   error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// Unwrap lets errors.Is match against the gateway error kinds.
func (e *Error) Unwrap() error { return e.Kind }

// newError builds an Error from a non-2xx response. The backend reports
// details as {"detail": "..."}.
func newError(resp *http.Response) error {
	detail := ""
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &body) == nil {
			detail = body.Detail
		}
	}
	return &Error{Status: resp.StatusCode, Detail: detail, Kind: classify(resp.StatusCode)}
}

func classify(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return gateway.ErrAuth
	case http.StatusNotFound:
		return gateway.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return gateway.ErrValidation
	}
	return gateway.ErrNetwork
}
