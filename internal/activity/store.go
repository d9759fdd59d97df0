package activity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/LibreCodeCoop/libresign-saas/internal/registry"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store contains activities that read from and update the control-plane
// database. It also backs the instance registry and the fleet aggregator,
// which share its query surface.
type Store struct {
	db       DB
	registry *registry.Registry
}

// NewStore creates a new Store activity struct.
func NewStore(db DB) *Store {
	s := &Store{db: db}
	s.registry = registry.New(s)
	return s
}
