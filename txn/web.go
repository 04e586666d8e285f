package txn

import (
	"sync"

	"entitystack/errors"

	"go.etcd.io/bbolt"
)

// WebContext is the Context handle for Backend B. It is the closest
// same-process analogue Go has to a browser's auto-committing IndexedDB
// transaction: a single bbolt read-write transaction, committed the
// instant the work callback returns, with the declared stores already
// opened as buckets.
type WebContext struct {
	Tx      *bbolt.Tx
	buckets map[string]*bbolt.Bucket
}

func (c *WebContext) Backend() Backend { return BackendWeb }

// Bucket returns the already-opened bucket for a declared store name, or
// nil if store wasn't declared for this transaction.
func (c *WebContext) Bucket(store string) *bbolt.Bucket { return c.buckets[store] }

// WebCoordinator runs transactions against a single bbolt database file.
// stores must be declared up front (spec §4.2): each is opened as a bucket
// before work runs, mirroring IndexedDB declaring object stores at a
// version upgrade. bbolt's own Update call already gives us exactly the
// auto-commit-on-return semantics spec.md asks for, so there is nothing
// extra to orchestrate beyond bucket setup and nesting protection.
type WebCoordinator struct {
	db *bbolt.DB
	mu sync.Mutex
}

func NewWebCoordinator(db *bbolt.DB) *WebCoordinator {
	return &WebCoordinator{db: db}
}

func (c *WebCoordinator) Transaction(stores []string, work Work) error {
	if !c.mu.TryLock() {
		return errors.Transaction("", errNestedTransaction)
	}
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		buckets := make(map[string]*bbolt.Bucket, len(stores))
		for _, name := range stores {
			b, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return err
			}
			buckets[name] = b
		}
		return work(&WebContext{Tx: tx, buckets: buckets})
	})
	if err != nil {
		return errors.Transaction("", err)
	}
	return nil
}

// SyncLookupUnsupported builds the QueryError returned by Backend B
// adapters for the integer-id synchronous lookup variants
// findByIdInTx/findAllInTx/deleteInTx, which spec.md §4.1 says "are not
// supported on this backend" — IndexedDB has no synchronous cursor API,
// so there is no honest way to implement them without suspending inside
// the transaction.
func SyncLookupUnsupported(entityType string) error {
	return errors.Query(entityType, syncLookupErr("sync id lookup is not supported on the web backend; use the uuid-keyed *InTx variant"))
}

type syncLookupErr string

func (e syncLookupErr) Error() string { return string(e) }
