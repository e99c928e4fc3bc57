package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/storage/memory"
	"github.com/sheikh-saqib/payments-reconciler/internal/storage/postgres"
)

// Open returns the run journal for dsn: Postgres when set, memory otherwise.
// The returned close func is never nil.
func Open(ctx context.Context, dsn string) (interfaces.RunStore, func() error, error) {
	if dsn == "" {
		return memory.NewMemoryRunStore(), func() error { return nil }, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := postgres.NewPostgresRunStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate run journal: %w", err)
	}
	return store, db.Close, nil
}
