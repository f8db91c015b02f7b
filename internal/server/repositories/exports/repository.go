package exports

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, export *models.Export) error
	MarkUploaded(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Export, error)
}
