package db

import (
	"context"

	"gorm.io/gorm"

	"library_lending/lending"
)

// Repo is the postgres-backed catalog and loan ledger.
type Repo struct{ DB *gorm.DB }

var _ lending.Store = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

func (r *Repo) Kind() string { return "postgres" }

func (r *Repo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// InTx runs fn inside one database transaction; a non-nil return rolls everything back.
func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx lending.Tx) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &txRepo{db: tx})
	})
}
