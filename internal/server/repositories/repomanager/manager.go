package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/entries"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/exports"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/users"
)

// RepositoryManager builds repositories bound to a DBTX, so the same code
// path serves plain connections and transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	Entries(db dbx.DBTX) entries.Repository
	Exports(db dbx.DBTX) exports.Repository
}
