package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// errNilTransaction is returned by wrapper methods when the wrapped
// transaction is nil.
var errNilTransaction = errors.New("nil transaction")

// GormTransactionWrapper wraps a *gorm.DB transaction to implement the
// mcontext.DatabaseTransaction interface. GORM's methods like Commit return
// *gorm.DB for chaining, which doesn't match the interface's plain error
// returns.
type GormTransactionWrapper struct {
	DB *gorm.DB
}

// NewGormTransactionWrapper creates a new wrapper around a GORM transaction.
func NewGormTransactionWrapper(tx *gorm.DB) *GormTransactionWrapper {
	return &GormTransactionWrapper{DB: tx}
}

// Commit implements the mcontext.DatabaseTransaction interface.
func (w *GormTransactionWrapper) Commit() error {
	if w.DB == nil {
		return errNilTransaction
	}
	return w.DB.Commit().Error
}

// Rollback implements the mcontext.DatabaseTransaction interface.
func (w *GormTransactionWrapper) Rollback() error {
	if w.DB == nil {
		return errNilTransaction
	}
	return w.DB.Rollback().Error
}

// SavePoint implements the mcontext.DatabaseTransaction interface.
func (w *GormTransactionWrapper) SavePoint(name string) error {
	if w.DB == nil {
		return errNilTransaction
	}
	return w.DB.SavePoint(name).Error
}

// RollbackTo implements the mcontext.DatabaseTransaction interface.
func (w *GormTransactionWrapper) RollbackTo(name string) error {
	if w.DB == nil {
		return errNilTransaction
	}
	return w.DB.RollbackTo(name).Error
}

// GetDB returns the underlying *gorm.DB instance.
func (w *GormTransactionWrapper) GetDB() *gorm.DB {
	return w.DB
}

var _ mcontext.DatabaseTransaction = (*GormTransactionWrapper)(nil)

// TransactionFactory begins database transactions for the Transaction
// decorator. Implementations can be mocked for testing.
type TransactionFactory interface {
	Begin(ctx context.Context) (mcontext.DatabaseTransaction, error)
}

// GormTransactionFactory begins transactions on a GORM database.
type GormTransactionFactory struct {
	DB *gorm.DB
}

// NewGormTransactionFactory creates a factory over db.
func NewGormTransactionFactory(db *gorm.DB) *GormTransactionFactory {
	return &GormTransactionFactory{DB: db}
}

// Begin starts a transaction bound to ctx.
func (f *GormTransactionFactory) Begin(ctx context.Context) (mcontext.DatabaseTransaction, error) {
	tx := f.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return NewGormTransactionWrapper(tx), nil
}

var _ TransactionFactory = (*GormTransactionFactory)(nil)

// Database returns a before unit that stores a request-scoped database
// session in the mcontext container, so the terminal can run queries without
// holding its own *gorm.DB.
func Database(db *gorm.DB) chain.Unit {
	return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		mcontext.WithDB(r.Context(), db.WithContext(r.Context()))
		return nil
	})
}

// Transaction wraps next in a database transaction. It is a terminal
// decorator rather than a before/after pair: an error anywhere in a chain
// skips the remaining units, so a commit placed in an after unit would never
// run for exactly the requests that need a rollback.
//
// The transaction and its session are stored in the mcontext container before
// next runs. The transaction is committed when next succeeds with a status
// below 400, and rolled back when next returns an error, answers with a 400+
// status, or panics (the panic is re-raised after the rollback). The error
// from next propagates unchanged; begin and commit failures surface as the
// decorator's own errors.
func Transaction(factory TransactionFactory, logger *zap.Logger, next common.Handler) common.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (err error) {
		tx, beginErr := factory.Begin(r.Context())
		if beginErr != nil {
			return fmt.Errorf("begin transaction: %w", beginErr)
		}

		mcontext.WithTransaction(r.Context(), tx)
		mcontext.WithDB(r.Context(), tx.GetDB())

		rec, ok := w.(*common.StatusRecorder)
		if !ok {
			rec = common.NewStatusRecorder(w)
			w = rec
		}

		defer func() {
			if p := recover(); p != nil {
				rollback(tx, logger, r)
				panic(p)
			}
		}()

		if err = next.Handle(w, r); err != nil {
			rollback(tx, logger, r)
			return err
		}
		if rec.Status() >= 400 {
			rollback(tx, logger, r)
			return nil
		}

		if commitErr := tx.Commit(); commitErr != nil {
			// The response may already be on the wire; propagating still
			// surfaces the lost write to the boundary's error log.
			logger.Error("Failed to commit transaction",
				zap.Error(commitErr),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			return fmt.Errorf("commit transaction: %w", commitErr)
		}
		return nil
	})
}

// rollback rolls the transaction back, logging a failure to do so. There is
// nothing further to propagate at that point.
func rollback(tx mcontext.DatabaseTransaction, logger *zap.Logger, r *http.Request) {
	if err := tx.Rollback(); err != nil {
		logger.Error("Failed to rollback transaction",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}
}
