package model

import (
	"context"
	"time"
)

type RevenuePeriod string

const (
	PeriodDay   RevenuePeriod = "day"
	PeriodWeek  RevenuePeriod = "week"
	PeriodMonth RevenuePeriod = "month"
	PeriodYear  RevenuePeriod = "year"
)

func (p RevenuePeriod) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

type DateRange struct {
	From *time.Time
	To   *time.Time
}

type OrderStats struct {
	TotalOrders       int
	PendingOrders     int
	ProcessingOrders  int
	ShippedOrders     int
	DeliveredOrders   int
	CancelledOrders   int
	TotalRevenueCents int64
	AverageOrderCents int64
}

type RevenueBucket struct {
	Period       string
	OrderCount   int
	RevenueCents int64
}

type TopCustomer struct {
	UserID          string
	OrderCount      int
	TotalSpentCents int64
	LastOrderAt     time.Time
}

type CategoryStockReport struct {
	Category      string
	TotalProducts int
	OutOfStock    int
	LowStock      int
	AverageStock  float64
}

// ReportRepository serves read-only aggregations over the order and
// inventory tables. Implementations never take the row locks used on the
// write path.
type ReportRepository interface {
	OrderStats(ctx context.Context, dateRange DateRange) (*OrderStats, error)
	RevenueByPeriod(ctx context.Context, period RevenuePeriod, limit int) ([]RevenueBucket, error)
	TopCustomers(ctx context.Context, limit int) ([]TopCustomer, error)
	StockReport(ctx context.Context) ([]CategoryStockReport, error)
}
