package txn

import (
	"database/sql"
	"sync"

	"entitystack/errors"
	"entitystack/logger"
)

// NativeContext is the Context handle for Backend A (SQLite). Adapters
// downcast to reach the live *sql.Tx.
type NativeContext struct {
	Tx *sql.Tx
}

func (c *NativeContext) Backend() Backend { return BackendNative }

// NativeCoordinator runs transactions against a single *sql.DB connection
// pool. Because database/sql transactions are pinned to one connection and
// every call the work function makes is a direct, synchronous method call
// on *sql.Tx, the "no task spawning inside a transaction" rule of spec.md
// §4.1 holds without extra bookkeeping.
type NativeCoordinator struct {
	db *sql.DB
	mu sync.Mutex // enforces the no-nested-transactions rule (spec §4.2)
}

func NewNativeCoordinator(db *sql.DB) *NativeCoordinator {
	return &NativeCoordinator{db: db}
}

func (c *NativeCoordinator) Transaction(stores []string, work Work) error {
	if !c.mu.TryLock() {
		return errors.Transaction("", errNestedTransaction)
	}
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return errors.Transaction("", err)
	}

	if err := work(&NativeContext{Tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warn("native txn: rollback after work error also failed: %v", rbErr)
		}
		return errors.Transaction("", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Transaction("", err)
	}
	return nil
}

var errNestedTransaction = txnErr("nested transactions are not supported")

type txnErr string

func (e txnErr) Error() string { return string(e) }
