package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"shopcore/pkg/domain/model"
)

func NewReportRepository(db *sqlx.DB) model.ReportRepository {
	return &reportRepository{db: db}
}

// reportRepository reads under the store's default consistent-read
// isolation and never takes the row locks used by the write path.
type reportRepository struct {
	db queryer
}

func (r *reportRepository) OrderStats(ctx context.Context, dateRange model.DateRange) (*model.OrderStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_orders,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_orders,
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0) AS processing_orders,
			COALESCE(SUM(CASE WHEN status = 'shipped' THEN 1 ELSE 0 END), 0) AS shipped_orders,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered_orders,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_orders,
			COALESCE(SUM(CASE WHEN payment_status = 'completed' THEN total_cents ELSE 0 END), 0) AS total_revenue_cents,
			COALESCE(AVG(total_cents), 0) AS average_order_cents
		FROM orders WHERE 1=1`
	var args []interface{}
	if dateRange.From != nil {
		query += " AND created_at >= ?"
		args = append(args, *dateRange.From)
	}
	if dateRange.To != nil {
		query += " AND created_at <= ?"
		args = append(args, *dateRange.To)
	}

	var row struct {
		TotalOrders       int     `db:"total_orders"`
		PendingOrders     int     `db:"pending_orders"`
		ProcessingOrders  int     `db:"processing_orders"`
		ShippedOrders     int     `db:"shipped_orders"`
		DeliveredOrders   int     `db:"delivered_orders"`
		CancelledOrders   int     `db:"cancelled_orders"`
		TotalRevenueCents int64   `db:"total_revenue_cents"`
		AverageOrderCents float64 `db:"average_order_cents"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, errors.Wrap(err, "select order stats")
	}

	return &model.OrderStats{
		TotalOrders:       row.TotalOrders,
		PendingOrders:     row.PendingOrders,
		ProcessingOrders:  row.ProcessingOrders,
		ShippedOrders:     row.ShippedOrders,
		DeliveredOrders:   row.DeliveredOrders,
		CancelledOrders:   row.CancelledOrders,
		TotalRevenueCents: row.TotalRevenueCents,
		AverageOrderCents: int64(row.AverageOrderCents),
	}, nil
}

var periodFormats = map[model.RevenuePeriod]string{
	model.PeriodDay:   "%Y-%m-%d",
	model.PeriodWeek:  "%Y-%u",
	model.PeriodMonth: "%Y-%m",
	model.PeriodYear:  "%Y",
}

func (r *reportRepository) RevenueByPeriod(ctx context.Context, period model.RevenuePeriod, limit int) ([]model.RevenueBucket, error) {
	format, ok := periodFormats[period]
	if !ok {
		format = periodFormats[model.PeriodMonth]
	}

	const query = `
		SELECT
			DATE_FORMAT(created_at, ?) AS period,
			COUNT(*) AS order_count,
			COALESCE(SUM(total_cents), 0) AS revenue_cents
		FROM orders
		WHERE payment_status = 'completed'
		GROUP BY DATE_FORMAT(created_at, ?)
		ORDER BY period DESC
		LIMIT ?`

	var rows []struct {
		Period       string `db:"period"`
		OrderCount   int    `db:"order_count"`
		RevenueCents int64  `db:"revenue_cents"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, format, format, limit); err != nil {
		return nil, errors.Wrap(err, "select revenue by period")
	}

	buckets := make([]model.RevenueBucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, model.RevenueBucket{
			Period:       row.Period,
			OrderCount:   row.OrderCount,
			RevenueCents: row.RevenueCents,
		})
	}
	return buckets, nil
}

func (r *reportRepository) TopCustomers(ctx context.Context, limit int) ([]model.TopCustomer, error) {
	const query = `
		SELECT
			user_id,
			COUNT(*) AS order_count,
			COALESCE(SUM(total_cents), 0) AS total_spent_cents,
			MAX(created_at) AS last_order_at
		FROM orders
		WHERE payment_status = 'completed'
		GROUP BY user_id
		ORDER BY total_spent_cents DESC
		LIMIT ?`

	var rows []struct {
		UserID          string       `db:"user_id"`
		OrderCount      int          `db:"order_count"`
		TotalSpentCents int64        `db:"total_spent_cents"`
		LastOrderAt     sql.NullTime `db:"last_order_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "select top customers")
	}

	customers := make([]model.TopCustomer, 0, len(rows))
	for _, row := range rows {
		var lastOrder time.Time
		if row.LastOrderAt.Valid {
			lastOrder = row.LastOrderAt.Time
		}
		customers = append(customers, model.TopCustomer{
			UserID:          row.UserID,
			OrderCount:      row.OrderCount,
			TotalSpentCents: row.TotalSpentCents,
			LastOrderAt:     lastOrder,
		})
	}
	return customers, nil
}

func (r *reportRepository) StockReport(ctx context.Context) ([]model.CategoryStockReport, error) {
	const query = `
		SELECT
			category,
			COUNT(*) AS total_products,
			COALESCE(SUM(CASE WHEN stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock,
			COALESCE(SUM(CASE WHEN stock < 10 THEN 1 ELSE 0 END), 0) AS low_stock,
			COALESCE(AVG(stock), 0) AS average_stock
		FROM products
		GROUP BY category
		ORDER BY category`

	var rows []struct {
		Category      string  `db:"category"`
		TotalProducts int     `db:"total_products"`
		OutOfStock    int     `db:"out_of_stock"`
		LowStock      int     `db:"low_stock"`
		AverageStock  float64 `db:"average_stock"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "select stock report")
	}

	reports := make([]model.CategoryStockReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, model.CategoryStockReport{
			Category:      row.Category,
			TotalProducts: row.TotalProducts,
			OutOfStock:    row.OutOfStock,
			LowStock:      row.LowStock,
			AverageStock:  row.AverageStock,
		})
	}
	return reports, nil
}
