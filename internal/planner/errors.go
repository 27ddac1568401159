// internal/planner/errors.go
package planner

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Fixed user-facing messages for the provider failures a user can act on.
// Anything unrecognized passes through verbatim.
const (
	MsgNotConfigured  = "The assistant isn't configured yet: set an API key and model to enable it."
	MsgQuotaExhausted = "The assistant is out of API quota right now. Please try again later."
	MsgBadCredential  = "The assistant's API credential was rejected. Check the configured API key."
	MsgUnknownModel   = "The configured model isn't available to this API key."
)

// normalizeProviderError rewrites the well-known OpenAI failure classes into
// the fixed messages above. Everything else passes through unchanged so the
// orchestration loop can surface it verbatim. Provider errors are never
// retried here; one failure aborts the turn.
func normalizeProviderError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := errorCode(apiErr)
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || code == "insufficient_quota":
			return errors.New(MsgQuotaExhausted)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return errors.New(MsgBadCredential)
		case apiErr.HTTPStatusCode == http.StatusNotFound || code == "model_not_found":
			return errors.New(MsgUnknownModel)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return errors.New(MsgQuotaExhausted)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.New(MsgBadCredential)
		}
	}

	return err
}

// errorCode extracts the string code from an APIError. The field is untyped
// because the API sends both strings and numbers there.
func errorCode(apiErr *openai.APIError) string {
	if s, ok := apiErr.Code.(string); ok {
		return s
	}
	return ""
}
