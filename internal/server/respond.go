package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
)

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		common.LoggerFrom(r.Context(), s.logger).Error("http.encode_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := common.LoggerFrom(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Error("http.request_failed", "status", status, "error", err)
	} else {
		log.Warn("http.request_rejected", "status", status, "error", err)
	}
	s.writeJSON(w, r, status, errorResponse{
		Message:   messageFor(err, status),
		RequestID: common.RequestIDFromContext(r.Context()),
	})
}

// statusFor maps a pipeline error to the HTTP status the client sees.
func statusFor(err error) int {
	var callErr *llm.CallError
	switch {
	case errors.As(err, &callErr):
		switch callErr.Kind {
		case llm.KindAuth:
			return http.StatusUnauthorized
		case llm.KindQuota:
			return http.StatusTooManyRequests
		default:
			return http.StatusBadGateway
		}
	case errors.Is(err, common.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrPageOutOfRange), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrIngestionFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
