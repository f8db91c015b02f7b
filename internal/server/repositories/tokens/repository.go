// Package tokens declares the server-side repository contract for the
// single-use tokens issued during signup and password reset.
package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking user tokens.
type Repository interface {
	// Create stores a token of the given kind for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, kind models.TokenKind, token string, validity time.Duration) error

	// Find looks up a token by kind and value and returns its metadata.
	// Implementations return common.ErrorNotFound when the token is absent.
	// Expiry is not checked here.
	Find(ctx context.Context, kind models.TokenKind, token string) (*models.UserToken, error)

	// Delete removes a token by kind and value. Deleting a non-existent
	// token is not an error.
	Delete(ctx context.Context, kind models.TokenKind, token string) error

	// DeleteByUser removes every token of the given kind issued to userID.
	DeleteByUser(ctx context.Context, userID string, kind models.TokenKind) error
}
