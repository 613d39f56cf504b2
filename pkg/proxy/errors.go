package proxy

import (
	"context"
	"errors"

	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/proxy/types"
)

// HandleError maps an internal error onto the OpenAI error envelope. The
// messages are written fresh rather than copied from the backend: raw
// backend error bodies can carry internal details and are never forwarded
// to clients.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return types.NewInvalidRequestError(reqErr.Message, reqErr.Param, reqErr.Code)
	}

	if errors.Is(err, credential.ErrNoCredentials) {
		return types.NewServiceUnavailableError(
			"No usable credentials are available. Complete a login or add a credential.",
			types.CodeNoCredentials,
		)
	}

	var authErr *backend.AuthError
	if errors.As(err, &authErr) {
		return types.NewBadGatewayError(
			"The backend rejected the relay's credential.",
			types.CodeBackendAuth,
		)
	}

	var upstreamErr *backend.UpstreamError
	if errors.As(err, &upstreamErr) {
		if upstreamErr.StatusCode == 504 || upstreamErr.StatusCode == 408 {
			return types.NewErrorResponse(
				"The backend timed out serving the request.",
				types.ErrorTypeGatewayTimeout, "", types.CodeBackendTimeout,
			)
		}
		return types.NewBadGatewayError(
			"The backend returned an unexpected response.",
			types.CodeBackendError,
		)
	}

	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewErrorResponse(
				"The backend timed out serving the request.",
				types.ErrorTypeGatewayTimeout, "", types.CodeBackendTimeout,
			)
		}
		return types.NewBadGatewayError(
			"Failed to reach the backend.",
			types.CodeBackendError,
		)
	}

	var parseErr *backend.ParseError
	if errors.As(err, &parseErr) {
		return types.NewBadGatewayError(
			"The backend returned a malformed response.",
			types.CodeBackendError,
		)
	}

	var aggErr *backend.AggregationError
	if errors.As(err, &aggErr) {
		return types.NewBadGatewayError(
			"The backend ended the stream before the response completed.",
			types.CodeIncompleteResponse,
		)
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}
