package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Default client-facing messages for service errors.
const (
	msgInternal       = "Internal server error"
	msgBadRequest     = "Invalid request body"
	msgNotFound       = "Not found"
	msgDecryption     = "Unable to retrieve password"
	msgUserExists     = "User already exists"
	msgBadCredentials = "Invalid credentials"
	msgInvalidToken   = "Invalid or expired token"
)

// H is a JSON object response.
type H map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, H{"success": status < 400, "message": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, msgBadRequest)
		return false
	}
	return true
}

// reply overrides the response for one sentinel on one route. A zero
// status keeps the default status.
type reply struct {
	status  int
	message string
}

type overrides map[error]reply

// handleServiceError maps a service error onto a status code and a message
// that is safe to show to clients. Unexpected errors are logged.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, custom overrides) {
	status, msg := http.StatusInternalServerError, msgInternal
	var sentinel error

	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		status, msg, sentinel = http.StatusBadRequest, verr.Error(), common.ErrValidation
	case errors.Is(err, common.ErrValidation):
		status, msg, sentinel = http.StatusBadRequest, msgBadRequest, common.ErrValidation
	case errors.Is(err, common.ErrorNotFound):
		status, msg, sentinel = http.StatusNotFound, msgNotFound, common.ErrorNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		status, msg, sentinel = http.StatusBadRequest, msgUserExists, common.ErrAlreadyExists
	case errors.Is(err, common.ErrorUnauthorized):
		status, msg, sentinel = http.StatusBadRequest, msgBadCredentials, common.ErrorUnauthorized
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		status, msg, sentinel = http.StatusBadRequest, msgInvalidToken, common.ErrInvalidToken
	case errors.Is(err, common.ErrDecryptionUnavailable):
		status, msg, sentinel = http.StatusInternalServerError, msgDecryption, common.ErrDecryptionUnavailable
	}

	if o, ok := custom[sentinel]; ok && sentinel != nil {
		if o.status != 0 {
			status = o.status
		}
		msg = o.message
	}

	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}

	body := H{"success": false, "message": msg}
	if verr != nil && len(verr.Fields) > 0 {
		body["fields"] = verr.Fields
	}
	writeJSON(w, status, body)
}
