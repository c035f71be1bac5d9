package service

import (
	"context"
	"fmt"

	"shopcore/pkg/domain/model"
)

const (
	defaultRevenueBuckets = 12
	maxRevenueBuckets     = 120
	defaultTopCustomers   = 10
	maxTopCustomers       = 100
)

// ReportService serves read-only aggregations. It shares the invariants of
// the write path but never its row locks.
type ReportService interface {
	GetOrderStats(ctx context.Context, dateRange model.DateRange) (*model.OrderStats, error)
	GetRevenueByPeriod(ctx context.Context, period model.RevenuePeriod, limit int) ([]model.RevenueBucket, error)
	GetTopCustomers(ctx context.Context, limit int) ([]model.TopCustomer, error)
	GetStockReport(ctx context.Context) ([]model.CategoryStockReport, error)
}

func NewReportService(reports model.ReportRepository) ReportService {
	return &reportService{reports: reports}
}

type reportService struct {
	reports model.ReportRepository
}

func (s *reportService) GetOrderStats(ctx context.Context, dateRange model.DateRange) (*model.OrderStats, error) {
	if dateRange.From != nil && dateRange.To != nil && dateRange.To.Before(*dateRange.From) {
		return nil, fmt.Errorf("%w: date range end precedes start", model.ErrValidation)
	}
	return s.reports.OrderStats(ctx, dateRange)
}

func (s *reportService) GetRevenueByPeriod(ctx context.Context, period model.RevenuePeriod, limit int) ([]model.RevenueBucket, error) {
	if period == "" {
		period = model.PeriodMonth
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: unknown revenue period %q", model.ErrValidation, period)
	}
	if limit <= 0 {
		limit = defaultRevenueBuckets
	}
	if limit > maxRevenueBuckets {
		limit = maxRevenueBuckets
	}
	return s.reports.RevenueByPeriod(ctx, period, limit)
}

func (s *reportService) GetTopCustomers(ctx context.Context, limit int) ([]model.TopCustomer, error) {
	if limit <= 0 {
		limit = defaultTopCustomers
	}
	if limit > maxTopCustomers {
		limit = maxTopCustomers
	}
	return s.reports.TopCustomers(ctx, limit)
}

func (s *reportService) GetStockReport(ctx context.Context) ([]model.CategoryStockReport, error) {
	return s.reports.StockReport(ctx)
}
