package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/selfauth"
)

// StatusOf maps an engine error to an HTTP status code.
func StatusOf(err error) int {
	switch selfauth.KindOf(err) {
	case selfauth.KindInvalidCredentials, selfauth.KindInvalidSecondFactor, selfauth.KindInvalidSession:
		return http.StatusUnauthorized
	case selfauth.KindSecondFactorRequired, selfauth.KindForbidden:
		return http.StatusForbidden
	case selfauth.KindNotFound:
		return http.StatusNotFound
	case selfauth.KindDuplicateIdentity, selfauth.KindAccountInactive, selfauth.KindAlreadyEnabled,
		selfauth.KindNotSetUp, selfauth.KindInvalidCode, selfauth.KindInvalidOrExpiredToken,
		selfauth.KindSelfProtectionViolation:
		return http.StatusBadRequest
	case selfauth.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case selfauth.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

// WriteError writes err as {"detail": ..., "kind": ...} with the status
// from StatusOf. Only the public message leaves the process.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Detail: selfauth.PublicMessage(err),
		Kind:   string(selfauth.KindOf(err)),
	})
}
