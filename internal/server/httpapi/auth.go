package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.users.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, H{
		"success": true,
		"message": "User created successfully. Please verify your email.",
		"user":    toUser(sess.User),
	})
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.VerifyEmail(r.Context(), req.Code)
	if err != nil {
		h.handleServiceError(w, r, err, overrides{
			common.ErrInvalidToken: {message: "Invalid or expired verification code"},
		})
		return
	}

	writeJSON(w, http.StatusOK, H{
		"success": true,
		"message": "Email verified successfully",
		"user":    toUser(u),
	})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}

	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, H{
		"success": true,
		"message": "Logged in successfully",
		"user":    toUser(sess.User),
	})
}

// Logout handles POST /api/auth/logout. Sessions are stateless, so this
// only clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ForgotPassword(r.Context(), req.Email); err != nil {
		h.handleServiceError(w, r, err, overrides{
			common.ErrorNotFound: {status: http.StatusBadRequest, message: "No account found with this email address"},
		})
		return
	}

	writeMessage(w, http.StatusOK, "Password reset email sent")
}

// ResetPassword handles POST /api/auth/reset-password/{token}.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		h.handleServiceError(w, r, err, overrides{
			common.ErrInvalidToken: {message: "Invalid or expired password reset token"},
		})
		return
	}

	writeMessage(w, http.StatusOK, "Password reset successfully")
}

// CheckAuth handles GET /api/auth/check-auth.
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	u, err := h.users.CheckAuth(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err, overrides{
			common.ErrorNotFound: {message: "User not found"},
		})
		return
	}

	writeJSON(w, http.StatusOK, H{"success": true, "user": toUser(u)})
}
