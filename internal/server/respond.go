package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/flow"
	"github.com/sells-group/contentmix/internal/store"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Flow  string `json:"flow,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// kindStatus maps a flow error kind to its HTTP status.
func kindStatus(k flow.ErrorKind) int {
	switch k {
	case flow.KindInput:
		return http.StatusBadRequest
	case flow.KindSchema:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// writeFailure maps a domain error to a status and error body. Flow
// failures carry the flow name and error kind.
func writeFailure(w http.ResponseWriter, err error) {
	var fe *flow.FlowError
	switch {
	case errors.As(err, &fe):
		status := kindStatus(fe.Kind)
		if status >= 500 {
			zap.L().Error("server: flow failed", zap.String("flow", string(fe.Flow)), zap.Error(err))
		}
		msg := fe.Error()
		if fe.Cause != nil {
			msg = fe.Cause.Error()
		}
		writeJSON(w, status, errorBody{Error: msg, Flow: string(fe.Flow), Kind: string(fe.Kind)})
	case errors.Is(err, flow.ErrUnknownFlow):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, asset.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, asset.ErrInvalidTransition), errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zap.L().Error("server: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
