package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"trade-ledger/internal/app"
	"trade-ledger/internal/cache"
	"trade-ledger/internal/config"
	"trade-ledger/internal/core"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
// Forbidden access is logged as a security event.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr    *app.RequestError
		valErr    *core.ValidationError
		notFound  *core.NotFoundError
		forbidden *core.ForbiddenError
		external  *core.ExternalServiceError
	)
	switch {
	case errors.As(err, &reqErr):
		writeErrorResponse(w, r, errorResponse{Error: "validation failed", Code: "VALIDATION_ERROR", Fields: reqErr.Fields}, http.StatusUnprocessableEntity)
	case errors.As(err, &valErr):
		writeErrorResponse(w, r, errorResponse{
			Error:  valErr.Error(),
			Code:   "VALIDATION_ERROR",
			Fields: map[string]string{valErr.Field: valErr.Message},
		}, http.StatusUnprocessableEntity)
	case errors.As(err, &notFound):
		writeError(w, r, notFound.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &forbidden):
		fields := logrus.Fields{
			"event":      "security.forbidden",
			"method":     r.Method,
			"path":       r.URL.Path,
			"reason":     forbidden.Reason,
			"request_id": requestIDFromContext(r.Context()),
		}
		if claims := authFromContext(r.Context()); claims != nil {
			fields["user_id"] = claims.UserID
			fields["role"] = claims.Role
		}
		h.log.WithFields(fields).Warn("forbidden access")
		writeError(w, r, "forbidden", "FORBIDDEN", http.StatusForbidden)
	case errors.Is(err, cache.ErrBusy):
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
	case errors.As(err, &external):
		writeError(w, r, external.Error(), "EXTERNAL_SERVICE_ERROR", http.StatusBadGateway)
	default:
		config.LogError(h.log, "web", r.Method+" "+r.URL.Path, "request_id="+requestIDFromContext(r.Context()), nil, err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
