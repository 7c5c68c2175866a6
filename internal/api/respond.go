package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/storefront/internal/apperr"
	"go.uber.org/zap"
)

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// respondError maps err onto the taxonomy. Causes are logged, never sent.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)

	message := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) && code != apperr.CodeInternal {
		message = appErr.Message
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("code", string(code)),
		zap.Error(err),
	}
	switch code {
	case apperr.CodeInternal:
		s.logger.Error("request failed", fields...)
	case apperr.CodeUpstream:
		s.logger.Warn("upstream failure", fields...)
	default:
		s.logger.Debug("request rejected", fields...)
	}

	respondJSON(w, code.HTTPStatus(), envelope{Success: false, Error: string(code), Message: message})
}
