package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"shopcore/pkg/domain/model"
)

func NewOrderRepository(db *sqlx.DB) model.OrderRepository {
	return &orderRepository{db: db}
}

type orderRepository struct {
	db queryer
}

type orderRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	TotalCents      int64          `db:"total_cents"`
	Status          string         `db:"status"`
	PaymentStatus   string         `db:"payment_status"`
	ShippingAddress string         `db:"shipping_address"`
	PaymentMethod   string         `db:"payment_method"`
	Notes           sql.NullString `db:"notes"`
	TrackingNumber  sql.NullString `db:"tracking_number"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type orderItemRow struct {
	ID          string `db:"id"`
	OrderID     string `db:"order_id"`
	ProductID   string `db:"product_id"`
	ProductName string `db:"product_name"`
	Quantity    int    `db:"quantity"`
	PriceCents  int64  `db:"price_cents"`
}

func (r *orderRepository) NextID() (uuid.UUID, error) {
	return uuid.New(), nil
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	const insertOrder = `
		INSERT INTO orders (id, user_id, total_cents, status, payment_status,
			shipping_address, payment_method, notes, tracking_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, insertOrder,
		order.ID.String(), order.UserID, order.TotalCents, string(order.Status),
		string(order.PaymentStatus), order.ShippingAddress, order.PaymentMethod,
		order.Notes, order.TrackingNumber, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	const insertItem = `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price_cents)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, item := range order.Items {
		_, err := r.db.ExecContext(ctx, insertItem,
			item.ID.String(), order.ID.String(), item.ProductID.String(),
			item.ProductName, item.Quantity, item.PriceCents)
		if err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}
	return nil
}

func (r *orderRepository) Find(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.find(ctx, id, false)
}

// FindForUpdate locks the order row until the surrounding transaction ends.
// Called outside a transaction the lock is released immediately, so it only
// makes sense on the unit of work's repositories.
func (r *orderRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.find(ctx, id, true)
}

func (r *orderRepository) find(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Order, error) {
	query := `SELECT * FROM orders WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var row orderRow
	err := r.db.GetContext(ctx, &row, query, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}

	order, err := row.toModel()
	if err != nil {
		return nil, err
	}
	order.Items, err = r.findItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	const query = `
		UPDATE orders
		SET status = ?, payment_status = ?, notes = ?, tracking_number = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(order.Status), string(order.PaymentStatus), order.Notes,
		order.TrackingNumber, order.UpdatedAt, order.ID.String())
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update order affected rows")
	}
	if affected == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter model.ListOrdersFilter) ([]model.Order, int, error) {
	where, args := buildOrderFilter(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	query := `SELECT * FROM orders` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "select orders")
	}

	orders := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		order.Items, err = r.findItems(ctx, order.ID)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *order)
	}
	return orders, total, nil
}

func (r *orderRepository) findItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	var rows []orderItemRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, order_id, product_id, product_name, quantity, price_cents
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID.String())
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}

	items := make([]model.OrderItem, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, errors.Wrap(err, "parse order item id")
		}
		productID, err := uuid.Parse(row.ProductID)
		if err != nil {
			return nil, errors.Wrap(err, "parse order item product id")
		}
		items = append(items, model.OrderItem{
			ID:          id,
			OrderID:     orderID,
			ProductID:   productID,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			PriceCents:  row.PriceCents,
		})
	}
	return items, nil
}

func buildOrderFilter(filter model.ListOrdersFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, *filter.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (row orderRow) toModel() (*model.Order, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse order id")
	}
	return &model.Order{
		ID:              id,
		UserID:          row.UserID,
		TotalCents:      row.TotalCents,
		Status:          model.OrderStatus(row.Status),
		PaymentStatus:   model.PaymentStatus(row.PaymentStatus),
		ShippingAddress: row.ShippingAddress,
		PaymentMethod:   row.PaymentMethod,
		Notes:           row.Notes.String,
		TrackingNumber:  row.TrackingNumber.String,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}
