package handlers

import (
	"errors"
	"log"
	"net/http"

	"routinely/internal/service"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`

	Fields map[string]string `json:"fields,omitempty"`
}

func respondWithError(w http.ResponseWriter, status int, code, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondJSON(w, status, errorResponse{
		Error:     userMsg,
		Code:      code,
		Retryable: service.IsRetryable(err),
	})
}

// respondWithServiceError maps the service error taxonomy onto HTTP statuses.
// Only unexpected failures are logged.
func respondWithServiceError(w http.ResponseWriter, logMsg string, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, CodeValidation, validationErr.Error(), "", nil)
	case errors.Is(err, service.ErrValidation):
		respondWithError(w, http.StatusBadRequest, CodeValidation, err.Error(), "", nil)
	case errors.Is(err, service.ErrInsufficientPoints):
		respondWithError(w, http.StatusBadRequest, CodeInsufficientPoints, "Not enough points for this reward", "", nil)
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, CodeForbidden, ErrForbidden, "", nil)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, CodeNotFound, ErrNotFound, "", nil)
	case errors.Is(err, service.ErrAlreadyClaimed):
		respondWithError(w, http.StatusConflict, CodeAlreadyClaimed, "Reward has already been claimed", "", nil)
	case errors.Is(err, service.ErrConstraintViolation):
		respondWithError(w, http.StatusConflict, CodeConstraintViolation, "Conflicting update, please retry", logMsg, err)
	default:
		respondWithError(w, http.StatusInternalServerError, CodeInternal, ErrInternalServerError, logMsg, err)
	}
}
