package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/nithinbasa/SmartGrid/internal/errors"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a coded error onto an HTTP status. Uncoded errors are
// reported as internal without their text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, ok := errors.CodeOf(err)
	if !ok {
		code = errors.ErrInternal
	}

	status := statusFor(code)
	message := errors.GetErrorMessage(code)
	if status < http.StatusInternalServerError {
		message = err.Error()
	} else {
		s.Logger.Error().Err(err).Msg("Request failed")
	}

	writeJSON(w, status, errorResponse{Error: string(code), Message: message})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrAlertNotFound:
		return http.StatusNotFound
	case errors.ErrInvalidArgument, errors.ErrInvalidReading:
		return http.StatusBadRequest
	case errors.ErrUnauthorized, errors.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case errors.ErrUnavailable, errors.ErrSourceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
