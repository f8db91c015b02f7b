// Package exports keeps the audit trail of vault archives uploaded to
// object storage.
package exports

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
)

// PostgresRepository implements export bookkeeping over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a pending export row and fills in ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, export *models.Export) error {
	query := `
		INSERT INTO exports (user_id, storage_key, entry_count, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if export.Status == "" {
		export.Status = models.ExportStatusPending
	}
	err := r.db.QueryRowContext(ctx, query,
		export.UserID, export.StorageKey, export.EntryCount, string(export.Status)).
		Scan(&export.ID, &export.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MarkUploaded marks the export as completed. Exactly one row must be affected.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, id string) error {
	query := `UPDATE exports SET status = 'completed' WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// ListByUser returns the user's exports, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Export, error) {
	query := `
		SELECT id, user_id, storage_key, entry_count, status, created_at
		FROM exports
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select exports: %w", err)
	}
	defer rows.Close()

	var result []*models.Export
	for rows.Next() {
		var item models.Export
		var status string
		if err := rows.Scan(&item.ID, &item.UserID, &item.StorageKey, &item.EntryCount, &status, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Status = models.ExportStatus(status)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
