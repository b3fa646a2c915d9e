package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Base is embedded by the gorm-backed repositories. Every method that
// accepts a tx runs on it when non-nil and on the root handle otherwise.
type Base struct {
	root *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{root: db}
}

// Handle picks tx or the root handle and scopes it to ctx.
func (b Base) Handle(ctx context.Context, tx *gorm.DB) *gorm.DB {
	h := b.root
	if tx != nil {
		h = tx
	}
	if ctx != nil {
		h = h.WithContext(ctx)
	}
	return h
}

// Transact runs fn inside a transaction on the root handle.
func (b Base) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.Handle(ctx, nil).Transaction(fn)
}

// First loads the first T matching query, ordered by order when given. It
// returns gorm.ErrRecordNotFound untouched so callers can map it.
func First[T any](h *gorm.DB, order string, query string, args ...any) (*T, error) {
	var row T
	q := h.Where(query, args...)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
