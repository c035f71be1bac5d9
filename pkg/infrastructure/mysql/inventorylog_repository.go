package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"shopcore/pkg/domain/model"
)

func NewInventoryLogRepository(db *sqlx.DB) model.InventoryLogRepository {
	return &inventoryLogRepository{db: db}
}

type inventoryLogRepository struct {
	db queryer
}

type inventoryLogRow struct {
	ID             int64     `db:"id"`
	ProductID      string    `db:"product_id"`
	ChangeType     string    `db:"change_type"`
	QuantityChange int       `db:"quantity_change"`
	PreviousStock  int       `db:"previous_stock"`
	NewStock       int       `db:"new_stock"`
	Reason         string    `db:"reason"`
	CreatedBy      string    `db:"created_by"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *inventoryLogRepository) Append(ctx context.Context, entry *model.InventoryLogEntry) error {
	const query = `
		INSERT INTO inventory_logs (product_id, change_type, quantity_change,
			previous_stock, new_stock, reason, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ProductID.String(), string(entry.ChangeType), entry.QuantityChange,
		entry.PreviousStock, entry.NewStock, entry.Reason, entry.CreatedBy)
	return errors.Wrap(err, "append inventory log")
}

func (r *inventoryLogRepository) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []inventoryLogRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM inventory_logs WHERE product_id = ? ORDER BY id DESC LIMIT ?`,
		productID.String(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select inventory logs")
	}

	entries := make([]model.InventoryLogEntry, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ProductID)
		if err != nil {
			return nil, errors.Wrap(err, "parse inventory log product id")
		}
		entries = append(entries, model.InventoryLogEntry{
			ID:             row.ID,
			ProductID:      id,
			ChangeType:     model.InventoryChangeType(row.ChangeType),
			QuantityChange: row.QuantityChange,
			PreviousStock:  row.PreviousStock,
			NewStock:       row.NewStock,
			Reason:         row.Reason,
			CreatedBy:      row.CreatedBy,
			CreatedAt:      row.CreatedAt,
		})
	}
	return entries, nil
}
