package entries

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

// Repository stores vault entries. Every method that touches an existing
// row filters on the owner; a row owned by someone else behaves exactly
// like a missing one.
type Repository interface {
	Create(ctx context.Context, entry *models.Entry) error
	ListByOwner(ctx context.Context, userID string) ([]*models.Entry, error)
	ListSealedByOwner(ctx context.Context, userID string) ([]*models.Entry, error)
	GetByOwner(ctx context.Context, userID, id string) (*models.Entry, error)
	Update(ctx context.Context, entry *models.Entry) error
	DeleteByOwner(ctx context.Context, userID, id string) error
}
