// Package tokens provides a PostgreSQL-backed repository for verification
// codes and password reset tokens.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new token for userID expiring at now+validity.
func (r *PostgresRepository) Create(ctx context.Context, userID string, kind models.TokenKind, token string, validity time.Duration) error {
	query := `
		INSERT INTO user_tokens (user_id, kind, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, string(kind), token, time.Now().Add(validity)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the token row matching kind and token.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, kind models.TokenKind, token string) (*models.UserToken, error) {
	query := `
		SELECT id, user_id, expires_at, created_at
		FROM user_tokens
		WHERE kind = $1 AND token = $2
	`
	t := &models.UserToken{Kind: kind, Token: token}
	err := r.db.QueryRowContext(ctx, query, string(kind), token).
		Scan(&t.ID, &t.UserID, &t.Expires, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Delete removes a token by kind and value.
func (r *PostgresRepository) Delete(ctx context.Context, kind models.TokenKind, token string) error {
	query := `
		DELETE FROM user_tokens
		WHERE kind = $1 AND token = $2
	`
	if _, err := r.db.ExecContext(ctx, query, string(kind), token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteByUser removes all tokens of one kind belonging to userID.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string, kind models.TokenKind) error {
	query := `
		DELETE FROM user_tokens
		WHERE user_id = $1 AND kind = $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, string(kind)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
