// Package http exposes the DSP wire protocol and RPC surface over
// net/http and gorilla/mux, the router estuary-flow's authn server uses
// for its own small HTTP surface.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/dspconnect/core/dsperr"
)

// statusFor maps a dsperr.Kind onto the HTTP status code DSP peers expect,
// per the classification an orchestrator handler or peer dispatch returns.
func statusFor(kind dsperr.Kind) int {
	switch kind {
	case dsperr.KindMalformedMessage, dsperr.KindUrnMalformed:
		return http.StatusBadRequest
	case dsperr.KindUnauthorized:
		return http.StatusUnauthorized
	case dsperr.KindForbidden:
		return http.StatusForbidden
	case dsperr.KindNotFound:
		return http.StatusNotFound
	case dsperr.KindConflict, dsperr.KindInvalidTransition:
		return http.StatusConflict
	case dsperr.KindPeerUnreachable:
		return http.StatusBadGateway
	case dsperr.KindPeerInternalError:
		return http.StatusBadGateway
	case dsperr.KindPeerResponseMalformed:
		return http.StatusBadGateway
	case dsperr.KindPeerProtocolError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Type    string `json:"@type"`
	Code    string `json:"code"`
	Message string `json:"reason"`
}

func writeError(w http.ResponseWriter, err error) {
	kind, _ := dsperr.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(kind))
	_ = json.NewEncoder(w).Encode(errorBody{
		Type:    "dspace:ContractNegotiationError",
		Code:    string(kind),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
