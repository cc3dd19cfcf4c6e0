package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/villagekeeper/internal/dbx"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/villages"
)

// InMemoryRepositoryManager hands out the same map-backed repositories for
// every handle, so transactions are not isolated.
type InMemoryRepositoryManager struct {
	UsersRepo    *users.MemoryRepository
	VillagesRepo *villages.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		UsersRepo:    users.NewMemoryRepository(),
		VillagesRepo: villages.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.UsersRepo
}

func (m *InMemoryRepositoryManager) Villages(dbx.DBTX) villages.Repository {
	return m.VillagesRepo
}
