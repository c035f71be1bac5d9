package model

import "context"

// RepositoryProvider exposes the repositories bound to a single
// transaction.
type RepositoryProvider interface {
	Orders() OrderRepository
	Stock() StockLedger
	InventoryLogs() InventoryLogRepository
}

// UnitOfWork runs fn inside one storage transaction. A nil return commits,
// any error rolls back every change made through the provider. If the store
// reports a deadlock the whole fn is retried once before the error is
// surfaced.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(rp RepositoryProvider) error) error
}
