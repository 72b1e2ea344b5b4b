package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

// TxRunner provides the transaction boundary for bulk loader writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return errors.New("transaction runner has nil db")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
