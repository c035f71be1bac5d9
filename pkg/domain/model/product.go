package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock quantity")
)

// Product is the core's read view of a catalog product plus the stock
// counter it owns the mutations of. Name and price are snapshotted into
// order items at placement time.
type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	PriceCents  int64
	Category    string
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockLedger is the only write path to product stock. Implementations run
// under the enclosing unit of work and append exactly one inventory log
// entry per successful mutation, with before/after values read from the
// locked row.
type StockLedger interface {
	// LockProducts loads the given products with row locks held for the
	// rest of the transaction, in ascending id order.
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// Reserve conditionally decrements stock. It fails with
	// ErrInsufficientStock when the current stock is below qty, even if an
	// earlier read suggested otherwise.
	Reserve(ctx context.Context, productID uuid.UUID, qty int, reason, actor string) error

	// Release restores stock consumed by a cancelled order.
	Release(ctx context.Context, productID uuid.UUID, qty int, reason, actor string) error
}
