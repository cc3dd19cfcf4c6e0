package villages

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
)

// MemoryRepository is a map-backed Repository for tests and local runs.
// GetByIDForUpdate does not lock.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*models.Village
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]*models.Village)}
}

func (r *MemoryRepository) Create(_ context.Context, v *models.Village) (*models.Village, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	v.ID = r.nextID
	v.CreatedAt = time.Now()
	stored := *v
	r.rows[v.ID] = &stored
	return v, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*models.Village, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *v
	return &out, nil
}

func (r *MemoryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Village, error) {
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.Village, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Village, 0)
	for _, v := range r.rows {
		if v.UserID == ownerID {
			out := *v
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}
