// Package villages stores village records. Every query that returns more
// than one record is scoped to an owner.
package villages

import (
	"context"

	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Village) (*models.Village, error)
	GetByID(ctx context.Context, id int64) (*models.Village, error)
	// GetByIDForUpdate locks the row; it must run inside a transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Village, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Village, error)
	Delete(ctx context.Context, id int64) error
}
