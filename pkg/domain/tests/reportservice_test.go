package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcore/pkg/domain/model"
	"shopcore/pkg/domain/service"
)

func setupReports(t *testing.T) (service.ReportService, *mockReportRepository) {
	repo := &mockReportRepository{}
	return service.NewReportService(repo), repo
}

func TestGetOrderStats(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		reportService, repo := setupReports(t)
		repo.stats = &model.OrderStats{TotalOrders: 7, TotalRevenueCents: 123400}

		stats, err := reportService.GetOrderStats(ctx, model.DateRange{})
		require.NoError(t, err)
		assert.Equal(t, 7, stats.TotalOrders)
		assert.Equal(t, int64(123400), stats.TotalRevenueCents)
	})

	t.Run("Fail on inverted date range", func(t *testing.T) {
		reportService, _ := setupReports(t)
		from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		to := from.Add(-24 * time.Hour)
		_, err := reportService.GetOrderStats(ctx, model.DateRange{From: &from, To: &to})
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestGetRevenueByPeriod(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults to monthly with twelve buckets", func(t *testing.T) {
		reportService, repo := setupReports(t)
		_, err := reportService.GetRevenueByPeriod(ctx, "", 0)
		require.NoError(t, err)
		assert.Equal(t, model.PeriodMonth, repo.lastPeriod)
		assert.Equal(t, 12, repo.lastLimit)
	})

	t.Run("Clamps oversized limit", func(t *testing.T) {
		reportService, repo := setupReports(t)
		_, err := reportService.GetRevenueByPeriod(ctx, model.PeriodDay, 10000)
		require.NoError(t, err)
		assert.Equal(t, 120, repo.lastLimit)
	})

	t.Run("Fail on unknown period", func(t *testing.T) {
		reportService, _ := setupReports(t)
		_, err := reportService.GetRevenueByPeriod(ctx, model.RevenuePeriod("fortnight"), 5)
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestGetTopCustomers(t *testing.T) {
	reportService, repo := setupReports(t)
	repo.customers = []model.TopCustomer{{UserID: "user-1", OrderCount: 3, TotalSpentCents: 9000}}

	customers, err := reportService.GetTopCustomers(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.lastLimit)
	require.Len(t, customers, 1)
	assert.Equal(t, "user-1", customers[0].UserID)
}

func TestGetStockReport(t *testing.T) {
	reportService, repo := setupReports(t)
	repo.stock = []model.CategoryStockReport{{Category: "tools", TotalProducts: 4, OutOfStock: 1}}

	report, err := reportService.GetStockReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "tools", report[0].Category)
	assert.Equal(t, 1, report[0].OutOfStock)
}

type mockReportRepository struct {
	stats      *model.OrderStats
	revenue    []model.RevenueBucket
	customers  []model.TopCustomer
	stock      []model.CategoryStockReport
	lastPeriod model.RevenuePeriod
	lastLimit  int
}

func (m *mockReportRepository) OrderStats(_ context.Context, _ model.DateRange) (*model.OrderStats, error) {
	if m.stats == nil {
		return &model.OrderStats{}, nil
	}
	return m.stats, nil
}

func (m *mockReportRepository) RevenueByPeriod(_ context.Context, period model.RevenuePeriod, limit int) ([]model.RevenueBucket, error) {
	m.lastPeriod = period
	m.lastLimit = limit
	return m.revenue, nil
}

func (m *mockReportRepository) TopCustomers(_ context.Context, limit int) ([]model.TopCustomer, error) {
	m.lastLimit = limit
	return m.customers, nil
}

func (m *mockReportRepository) StockReport(_ context.Context) ([]model.CategoryStockReport, error) {
	return m.stock, nil
}
