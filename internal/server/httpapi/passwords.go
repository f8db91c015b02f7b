package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/go-chi/chi/v5"
)

// entryRequest is the body of create and update calls. The secret travels
// as "password". Pointer fields tell an absent key from an empty one.
type entryRequest struct {
	Name     *string `json:"name"`
	Website  *string `json:"website"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Notes    *string `json:"notes"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var entryNotFound = overrides{common.ErrorNotFound: {message: "Password not found"}}

// CreatePassword handles POST /api/passwords.
func (h *Handler) CreatePassword(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.vault.Create(r.Context(), ownerID, models.EntryInput{
		Name:     deref(req.Name),
		Website:  deref(req.Website),
		Username: deref(req.Username),
		Secret:   deref(req.Password),
		Notes:    deref(req.Notes),
	})
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusCreated, H{
		"success":  true,
		"message":  "Password saved successfully",
		"password": toEntry(created),
	})
}

// ListPasswords handles GET /api/passwords.
func (h *Handler) ListPasswords(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	items, err := h.vault.List(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	out := make([]entry, 0, len(items))
	for _, e := range items {
		out = append(out, toEntry(e))
	}
	writeJSON(w, http.StatusOK, H{"success": true, "passwords": out})
}

// GetPassword handles GET /api/passwords/{id}. It is the only route that
// returns a decrypted secret.
func (h *Handler) GetPassword(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	e, err := h.vault.Reveal(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err, entryNotFound)
		return
	}

	writeJSON(w, http.StatusOK, H{
		"success":  true,
		"password": revealedEntry{entry: toEntry(&e.EntrySummary), Password: e.Secret},
	})
}

// UpdatePassword handles PUT /api/passwords/{id}.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.vault.Update(r.Context(), ownerID, chi.URLParam(r, "id"), models.EntryPatch{
		Name:     req.Name,
		Website:  req.Website,
		Username: req.Username,
		Secret:   req.Password,
		Notes:    req.Notes,
	})
	if err != nil {
		h.handleServiceError(w, r, err, entryNotFound)
		return
	}

	writeJSON(w, http.StatusOK, H{
		"success":  true,
		"message":  "Password updated successfully",
		"password": toEntry(updated),
	})
}

// DeletePassword handles DELETE /api/passwords/{id}.
func (h *Handler) DeletePassword(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	if err := h.vault.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err, entryNotFound)
		return
	}

	writeMessage(w, http.StatusOK, "Password deleted successfully")
}

// ExportPasswords handles POST /api/passwords/export.
func (h *Handler) ExportPasswords(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	exp, err := h.exports.Export(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusCreated, H{
		"success": true,
		"message": "Vault exported successfully",
		"export":  toExport(exp),
	})
}

// ListExports handles GET /api/passwords/exports.
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	items, err := h.exports.History(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	out := make([]export, 0, len(items))
	for _, e := range items {
		out = append(out, toExport(e))
	}
	writeJSON(w, http.StatusOK, H{"success": true, "exports": out})
}
