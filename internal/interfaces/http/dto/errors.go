package dto

import "net/http"

// Envelope error codes. Every code has the ERR_ prefix.
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeNotFound   = "ERR_NOT_FOUND"

	// Admin token failures
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	// ErrCodeSignatureInvalid reports a webhook signature that did not verify
	ErrCodeSignatureInvalid = "ERR_SIGNATURE_INVALID"
	ErrCodeRequestTooLarge  = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeUpstream reports a failed gateway or commerce platform call
	ErrCodeUpstream = "ERR_UPSTREAM"
)

var statusByCode = map[string]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeSignatureInvalid: http.StatusUnauthorized,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeUpstream:         http.StatusBadGateway,
}

// HTTPStatus returns the status served with code, 500 for unknown codes.
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
