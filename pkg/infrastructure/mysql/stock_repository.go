package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"shopcore/pkg/domain/model"
)

type stockRepository struct {
	db queryer
}

type productRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	PriceCents  int64          `db:"price_cents"`
	Category    string         `db:"category"`
	Stock       int            `db:"stock"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// LockProducts takes row locks on every listed product for the remainder of
// the transaction. Rows are locked in ascending id order so concurrent
// checkouts sharing products cannot circular-wait.
func (r *stockRepository) LockProducts(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	query, args, err := sqlx.In(`SELECT * FROM products WHERE id IN (?) ORDER BY id FOR UPDATE`, idStrings)
	if err != nil {
		return nil, errors.Wrap(err, "build product lock query")
	}
	query = r.db.Rebind(query)

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "lock products")
	}

	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		product, err := row.toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, nil
}

// Reserve decrements stock only while enough remains. The conditional
// update's affected-row count decides the outcome: zero rows means the
// stock the caller saw earlier has been consumed by a concurrent
// reservation, and the whole operation must fail.
func (r *stockRepository) Reserve(ctx context.Context, productID uuid.UUID, qty int, reason, actor string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?, updated_at = NOW() WHERE id = ? AND stock >= ?`,
		qty, productID.String(), qty)
	if err != nil {
		return errors.Wrap(err, "reserve stock")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reserve stock affected rows")
	}
	if affected == 0 {
		if exists, err := r.productExists(ctx, productID); err != nil {
			return err
		} else if !exists {
			return model.ErrProductNotFound
		}
		return model.ErrInsufficientStock
	}

	return r.appendLog(ctx, productID, model.ChangeStockOut, -qty, reason, actor)
}

// Release restores stock consumed by a cancelled order.
func (r *stockRepository) Release(ctx context.Context, productID uuid.UUID, qty int, reason, actor string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = NOW() WHERE id = ?`,
		qty, productID.String())
	if err != nil {
		return errors.Wrap(err, "release stock")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "release stock affected rows")
	}
	if affected == 0 {
		return model.ErrProductNotFound
	}

	return r.appendLog(ctx, productID, model.ChangeStockIn, qty, reason, actor)
}

// appendLog records the mutation in the inventory log, reading before/after
// values from the row still locked by this transaction.
func (r *stockRepository) appendLog(ctx context.Context, productID uuid.UUID, changeType model.InventoryChangeType, delta int, reason, actor string) error {
	var stock int
	err := r.db.GetContext(ctx, &stock, `SELECT stock FROM products WHERE id = ?`, productID.String())
	if err != nil {
		return errors.Wrap(err, "read stock for inventory log")
	}

	logs := &inventoryLogRepository{db: r.db}
	return logs.Append(ctx, &model.InventoryLogEntry{
		ProductID:      productID,
		ChangeType:     changeType,
		QuantityChange: delta,
		PreviousStock:  stock - delta,
		NewStock:       stock,
		Reason:         reason,
		CreatedBy:      actor,
	})
}

func (r *stockRepository) productExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM products WHERE id = ?`, productID.String())
	if err != nil {
		return false, errors.Wrap(err, "check product existence")
	}
	return count > 0, nil
}

func (row productRow) toModel() (*model.Product, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse product id")
	}
	return &model.Product{
		ID:          id,
		Name:        row.Name,
		Description: row.Description.String,
		PriceCents:  row.PriceCents,
		Category:    row.Category,
		Stock:       row.Stock,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
