package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/villagekeeper/internal/dbx"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/villages"
)

// RepositoryManager vends repositories bound to a DB handle or transaction,
// so services decide the transactional scope of each call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Villages(db dbx.DBTX) villages.Repository
}
