package ozon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andreyv/supplybot/go/clients"
)

const (
	codeAPIKeyDeactivated = 7
	codeDraftExpired      = 5
)

// Sentinels the engine branches on. They surface through errors.Is on any
// error returned from this package.
var (
	// ErrAPIKeyDeactivated means the seller revoked the key; the task must
	// abort and the chat layer must drop the stored credentials.
	ErrAPIKeyDeactivated = errors.New("api-key is deactivated")
	// ErrDraftExpired is draft/create/info answering 404 with code 5.
	ErrDraftExpired = errors.New("draft expired")
)

// APIError is a non-2xx Seller API response with its decoded code/message.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("seller api: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// classify turns transport-level status errors into typed API errors so the
// state machine branches on values, not on response text.
func classify(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var se *clients.StatusError
	if !errors.As(err, &se) {
		return err
	}

	apiErr := &APIError{StatusCode: se.StatusCode}
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(se.Body, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = string(se.Body)
	}

	switch {
	case se.StatusCode == http.StatusForbidden &&
		(apiErr.Code == codeAPIKeyDeactivated ||
			strings.Contains(strings.ToLower(apiErr.Message), "api-key is deactivated")):
		apiErr.kind = ErrAPIKeyDeactivated
	case se.StatusCode == http.StatusNotFound &&
		apiErr.Code == codeDraftExpired &&
		endpoint == EndpointDraftInfo:
		apiErr.kind = ErrDraftExpired
	}
	return apiErr
}
