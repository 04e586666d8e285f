// Package web implements storage.Adapter for Backend B: a bbolt database
// file standing in for a browser's IndexedDB object store. Each entity
// type gets two buckets: "<table>" keyed by uuid holding the JSON body,
// and "<table>__by_id" keyed by the decimal integer id holding the uuid,
// so integer-id lookups outside a transaction stay O(1) without forcing
// every entity to be walked.
package web

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"entitystack/entity"
	"entitystack/errors"
	"entitystack/txn"
)

type Store[T entity.Entity] struct {
	db      *bbolt.DB
	table   string
	idTable string
	newT    entity.New[T]
}

// Buckets returns the store names to declare when opening a
// txn.Coordinator.Transaction that will touch this store.
func (s *Store[T]) Buckets() []string { return []string{s.table, s.idTable} }

func NewStore[T entity.Entity](db *bbolt.DB, table string, newT entity.New[T]) (*Store[T], error) {
	s := &Store[T]{db: db, table: table, idTable: table + "__by_id", newT: newT}
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(s.table)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(s.idTable))
		return err
	})
	if err != nil {
		return nil, errors.Wrap(table, err)
	}
	return s, nil
}

func (s *Store[T]) decode(body []byte) (T, error) {
	e := s.newT()
	if err := e.FromJSON(body); err != nil {
		var zero T
		return zero, errors.Wrap(s.table, err)
	}
	return e, nil
}

func idKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }

// findChecked reports whether a row was found via the bool result rather
// than nil-checking T: T is typically a pointer entity type, and a zero T
// is a nil pointer whose promoted Base methods (GetUUID, ...) dereference
// that nil pointer and panic if called.
func (s *Store[T]) findChecked(u string) (T, bool, error) {
	var zero T
	var result T
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.table))
		if b == nil {
			return nil
		}
		body := b.Get([]byte(u))
		if body == nil {
			return nil
		}
		e, err := s.decode(body)
		if err != nil {
			return err
		}
		result = e
		found = true
		return nil
	})
	if err != nil {
		return zero, false, errors.Query(s.table, err)
	}
	return result, found, nil
}

func (s *Store[T]) FindByUUID(u string) (T, error) {
	e, _, err := s.findChecked(u)
	return e, err
}

func (s *Store[T]) findIDChecked(id int64) (T, bool, error) {
	var zero T
	var result T
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket([]byte(s.idTable))
		b := tx.Bucket([]byte(s.table))
		if idx == nil || b == nil {
			return nil
		}
		uuidBytes := idx.Get(idKey(id))
		if uuidBytes == nil {
			return nil
		}
		body := b.Get(uuidBytes)
		if body == nil {
			return nil
		}
		e, err := s.decode(body)
		if err != nil {
			return err
		}
		result = e
		found = true
		return nil
	})
	if err != nil {
		return zero, false, errors.Query(s.table, err)
	}
	return result, found, nil
}

func (s *Store[T]) FindByID(id int64) (T, error) {
	e, _, err := s.findIDChecked(id)
	return e, err
}

func (s *Store[T]) GetByUUID(u string) (T, error) {
	e, found, err := s.findChecked(u)
	if err != nil {
		return e, err
	}
	if !found {
		return e, errors.NotFound(s.table, "uuid", u)
	}
	return e, nil
}

func (s *Store[T]) GetByID(id int64) (T, error) {
	e, found, err := s.findIDChecked(id)
	if err != nil {
		return e, err
	}
	if !found {
		return e, errors.NotFound(s.table, "id", strconv.FormatInt(id, 10))
	}
	return e, nil
}

func (s *Store[T]) FindAll() ([]T, error) {
	var out []T
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, body []byte) error {
			e, err := s.decode(body)
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Query(s.table, err)
	}
	return out, nil
}

func (s *Store[T]) FindUnsynced() ([]T, error) {
	all, err := s.FindAll()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range all {
		if e.GetSyncStatus() == entity.SyncLocal {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store[T]) Count() (int64, error) {
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.table))
		if b == nil {
			return nil
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, errors.Query(s.table, err)
	}
	return n, nil
}

func (s *Store[T]) save(b, idx *bbolt.Bucket, e T, touch bool) (T, error) {
	var zero T
	if e.GetUUID() == "" {
		e.SetUUID(uuid.NewString())
	}
	now := time.Now().UTC()

	existing := b.Get([]byte(e.GetUUID()))
	if existing == nil {
		seq, err := idx.NextSequence()
		if err != nil {
			return zero, errors.Wrap(s.table, err)
		}
		e.SetID(int64(seq))
		e.SetCreatedAt(now)
		e.SetUpdatedAt(now)
	} else {
		prev, err := s.decode(existing)
		if err != nil {
			return zero, err
		}
		e.SetID(prev.GetID())
		e.SetCreatedAt(prev.GetCreatedAt())
		if touch && e.TouchOnSave() {
			e.SetUpdatedAt(now)
		} else {
			e.SetUpdatedAt(prev.GetUpdatedAt())
		}
	}

	body, err := e.ToJSON()
	if err != nil {
		return zero, errors.Wrap(s.table, err)
	}
	if err := b.Put([]byte(e.GetUUID()), body); err != nil {
		return zero, errors.Query(s.table, err)
	}
	if err := idx.Put(idKey(e.GetID()), []byte(e.GetUUID())); err != nil {
		return zero, errors.Query(s.table, err)
	}
	return e, nil
}

func (s *Store[T]) Save(e T) (T, error)        { return s.saveAuto(e, true) }
func (s *Store[T]) SaveNoTouch(e T) (T, error) { return s.saveAuto(e, false) }

func (s *Store[T]) saveAuto(e T, touch bool) (T, error) {
	var zero T
	var result T
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(s.table))
		if err != nil {
			return err
		}
		idx, err := tx.CreateBucketIfNotExists([]byte(s.idTable))
		if err != nil {
			return err
		}
		saved, err := s.save(b, idx, e, touch)
		result = saved
		return err
	})
	if err != nil {
		return zero, errors.Wrap(s.table, err)
	}
	return result, nil
}

func (s *Store[T]) SaveAll(es []T) ([]T, error) {
	out := make([]T, 0, len(es))
	for _, e := range es {
		saved, err := s.Save(e)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *Store[T]) Delete(id int64) (bool, error) {
	e, found, err := s.findIDChecked(id)
	if err != nil || !found {
		return false, err
	}
	return s.DeleteByUUID(e.GetUUID())
}

func (s *Store[T]) DeleteByUUID(u string) (bool, error) {
	var found bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.table))
		idx := tx.Bucket([]byte(s.idTable))
		if b == nil {
			return nil
		}
		body := b.Get([]byte(u))
		if body == nil {
			return nil
		}
		e, err := s.decode(body)
		if err != nil {
			return err
		}
		found = true
		if err := b.Delete([]byte(u)); err != nil {
			return err
		}
		if idx != nil {
			return idx.Delete(idKey(e.GetID()))
		}
		return nil
	})
	if err != nil {
		return false, errors.Query(s.table, err)
	}
	return found, nil
}

func webBuckets(ctx txn.Context, table, idTable string) (*bbolt.Bucket, *bbolt.Bucket, error) {
	wc, ok := ctx.(*txn.WebContext)
	if !ok {
		return nil, nil, errors.Transaction("", errWrongBackend)
	}
	b := wc.Bucket(table)
	idx := wc.Bucket(idTable)
	if b == nil || idx == nil {
		return nil, nil, errors.Transaction(table, errUndeclaredStore)
	}
	return b, idx, nil
}

var errWrongBackend = storeErr("expected web backend transaction context")
var errUndeclaredStore = storeErr("store not declared for this transaction; pass Store.Buckets() to Coordinator.Transaction")

type storeErr string

func (e storeErr) Error() string { return string(e) }

func (s *Store[T]) SaveInTx(ctx txn.Context, e T) (T, error) {
	var zero T
	b, idx, err := webBuckets(ctx, s.table, s.idTable)
	if err != nil {
		return zero, err
	}
	return s.save(b, idx, e, true)
}

func (s *Store[T]) SaveAllInTx(ctx txn.Context, es []T) ([]T, error) {
	b, idx, err := webBuckets(ctx, s.table, s.idTable)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(es))
	for _, e := range es {
		saved, err := s.save(b, idx, e, true)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *Store[T]) FindByUUIDInTx(ctx txn.Context, u string) (T, error) {
	var zero T
	b, _, err := webBuckets(ctx, s.table, s.idTable)
	if err != nil {
		return zero, err
	}
	body := b.Get([]byte(u))
	if body == nil {
		return zero, nil
	}
	return s.decode(body)
}

// FindByIDInTx, FindAllInTx and DeleteInTx are unsupported on the web
// backend: IndexedDB has no synchronous cursor API, so there is no honest
// way to walk or random-access by integer key from inside a transaction
// callback without suspending it.
func (s *Store[T]) FindByIDInTx(ctx txn.Context, id int64) (T, error) {
	var zero T
	return zero, txn.SyncLookupUnsupported(s.table)
}

func (s *Store[T]) FindAllInTx(ctx txn.Context) ([]T, error) {
	return nil, txn.SyncLookupUnsupported(s.table)
}

func (s *Store[T]) DeleteInTx(ctx txn.Context, id int64) error {
	return txn.SyncLookupUnsupported(s.table)
}

func (s *Store[T]) DeleteByUUIDInTx(ctx txn.Context, u string) error {
	b, idx, err := webBuckets(ctx, s.table, s.idTable)
	if err != nil {
		return err
	}
	body := b.Get([]byte(u))
	if body == nil {
		return nil
	}
	e, err := s.decode(body)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(u)); err != nil {
		return errors.Query(s.table, err)
	}
	return idx.Delete(idKey(e.GetID()))
}

func (s *Store[T]) DeleteAllInTx(ctx txn.Context) error {
	b, idx, err := webBuckets(ctx, s.table, s.idTable)
	if err != nil {
		return err
	}
	for _, bucket := range []*bbolt.Bucket{b, idx} {
		var keys [][]byte
		if err := bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return errors.Query(s.table, err)
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return errors.Query(s.table, err)
			}
		}
	}
	return nil
}

// FindByField and FindByFieldInTx support chunking.Registry and
// version.Adapter the same way the native backend does: a client-side
// filter over FindAll, since Store is generic over T and has no
// type-specific secondary index to query by.
func (s *Store[T]) FindByField(value string, get func(T) string) ([]T, error) {
	all, err := s.FindAll()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range all {
		if get(e) == value {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store[T]) DeleteByFieldInTx(ctx txn.Context, value string, get func(T) string) error {
	matches, err := s.FindByField(value, get)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := s.DeleteByUUIDInTx(ctx, m.GetUUID()); err != nil {
			return err
		}
	}
	return nil
}
