package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type InventoryChangeType string

const (
	ChangeStockIn    InventoryChangeType = "stock_in"
	ChangeStockOut   InventoryChangeType = "stock_out"
	ChangeAdjustment InventoryChangeType = "adjustment"
)

// InventoryLogEntry is an immutable audit record of a single stock
// mutation. Entries are only ever appended, never updated or deleted, and
// the new_stock of one entry equals the previous_stock of the next for the
// same product.
type InventoryLogEntry struct {
	ID             int64
	ProductID      uuid.UUID
	ChangeType     InventoryChangeType
	QuantityChange int
	PreviousStock  int
	NewStock       int
	Reason         string
	CreatedBy      string
	CreatedAt      time.Time
}

type InventoryLogRepository interface {
	Append(ctx context.Context, entry *InventoryLogEntry) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]InventoryLogEntry, error)
}
