package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos fall back to their own handle when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background returns a Context without a transaction.
func Background() Context { return Context{Ctx: context.Background()} }

// New wraps ctx without a transaction.
func New(ctx context.Context) Context { return Context{Ctx: ctx} }

// WithTx returns a copy of c bound to tx.
func (c Context) WithTx(tx *gorm.DB) Context {
	c.Tx = tx
	return c
}

// Context returns the wrapped context, never nil.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// DB picks the transaction when present, otherwise fallback, and binds the
// context to it.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	t := c.Tx
	if t == nil {
		t = fallback
	}
	return t.WithContext(c.Context())
}
