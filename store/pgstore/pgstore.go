package pgstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"saltdig/store"
)

// Store is the Postgres-backed store.Store, wrapping one *gorm.DB.
// Within a WithinTx scope db is the in-flight transaction's handle;
// outside one it is the pool connection, same as otc-gateway's Server
// passing either s.DB or tx through its handlers.
type Store struct {
	db *gorm.DB
}

// New opens a Postgres connection at dsn and runs AutoMigrate, the
// same two-step open/migrate sequence as services/otc-gateway/main.go.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("pgstore: automigrate: %w", err)
	}
	return &Store{db: db}, nil
}

// WithinTx wraps gorm.DB.Transaction: fn's writes either all land or
// all roll back, giving the compound mutations in spec §5 the same
// row-level serialization otc-gateway's reviewPartner/sign_submit
// handlers get from the same mechanism.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx})
	})
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrConflict
	}
	return err
}
