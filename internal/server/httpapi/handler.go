// Package httpapi exposes the account and vault services over a JSON HTTP
// API routed with chi.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/services"
)

// Users is the account service used by the auth routes.
type Users interface {
	Signup(ctx context.Context, email, password, name string) (*services.Session, error)
	VerifyEmail(ctx context.Context, code string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	CheckAuth(ctx context.Context, userID string) (*models.User, error)
}

// Vault is the entry service used by the /api/passwords routes.
type Vault interface {
	Create(ctx context.Context, ownerID string, in models.EntryInput) (*models.EntrySummary, error)
	List(ctx context.Context, ownerID string) ([]*models.EntrySummary, error)
	Reveal(ctx context.Context, ownerID, id string) (*models.RevealedEntry, error)
	Update(ctx context.Context, ownerID, id string, patch models.EntryPatch) (*models.EntrySummary, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Exports is the archive service.
type Exports interface {
	Export(ctx context.Context, ownerID string) (*models.Export, error)
	History(ctx context.Context, ownerID string) ([]*models.Export, error)
}

// Handler holds the HTTP handlers and the middleware that needs services.
type Handler struct {
	users        Users
	vault        Vault
	exports      Exports
	jwtSecret    []byte
	cookieSecure bool
	log          logging.Logger
}

// Options carries the handler settings that come from configuration.
type Options struct {
	JWTSecret    string
	CookieSecure bool
}

func NewHandler(us Users, vs Vault, es Exports, opts Options, log logging.Logger) *Handler {
	return &Handler{
		users:        us,
		vault:        vs,
		exports:      es,
		jwtSecret:    []byte(opts.JWTSecret),
		cookieSecure: opts.CookieSecure,
		log:          log.With("module", "http"),
	}
}

// user is the public view of an account. It never includes the password
// hash or any token.
type user struct {
	ID         string    `json:"_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toUser(u *models.User) user {
	return user{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type entry struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Website   string    `json:"website"`
	Username  string    `json:"username"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toEntry(e *models.EntrySummary) entry {
	return entry{
		ID:        e.ID,
		Name:      e.Name,
		Website:   e.Website,
		Username:  e.Username,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// revealedEntry is the only response shape that carries a secret.
type revealedEntry struct {
	entry
	Password string `json:"password"`
}

type export struct {
	ID         string     `json:"_id"`
	EntryCount int        `json:"entryCount"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	URL        string     `json:"url,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

func toExport(e *models.Export) export {
	out := export{
		ID:         e.ID,
		EntryCount: e.EntryCount,
		Status:     string(e.Status),
		CreatedAt:  e.CreatedAt,
		URL:        e.URL,
	}
	if !e.ExpiresAt.IsZero() {
		out.ExpiresAt = &e.ExpiresAt
	}
	return out
}
