package mysql

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff"
	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"shopcore/pkg/domain/model"
)

const (
	// MySQL server error codes for deadlock and lock wait timeout.
	errDeadlock        = 1213
	errLockWaitTimeout = 1205

	deadlockRetries    = 1
	deadlockRetryDelay = 50 * time.Millisecond
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, so every repository
// works inside and outside a unit of work.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func NewUnitOfWork(db *sqlx.DB) model.UnitOfWork {
	return &unitOfWork{db: db}
}

type unitOfWork struct {
	db *sqlx.DB
}

// Execute runs fn in one transaction. Deadlocks are retried once with the
// whole fn re-evaluated on a fresh transaction; business errors are never
// retried.
func (u *unitOfWork) Execute(ctx context.Context, fn func(rp model.RepositoryProvider) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := u.runInTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		log.WithError(err).WithField("attempt", attempt).Warn("transaction deadlocked")
		return err
	}
	return backoff.Retry(op, backoff.WithMaxRetries(backoff.NewConstantBackOff(deadlockRetryDelay), deadlockRetries))
}

func (u *unitOfWork) runInTx(ctx context.Context, fn func(rp model.RepositoryProvider) error) error {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	if err := fn(&txRepositoryProvider{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("transaction rollback failed")
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

func isRetryable(err error) bool {
	var mysqlErr *driver.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == errDeadlock || mysqlErr.Number == errLockWaitTimeout
	}
	return false
}

type txRepositoryProvider struct {
	tx *sqlx.Tx
}

func (p *txRepositoryProvider) Orders() model.OrderRepository {
	return &orderRepository{db: p.tx}
}

func (p *txRepositoryProvider) Stock() model.StockLedger {
	return &stockRepository{db: p.tx}
}

func (p *txRepositoryProvider) InventoryLogs() model.InventoryLogRepository {
	return &inventoryLogRepository{db: p.tx}
}
