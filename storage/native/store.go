// Package native implements storage.Adapter for Backend A: an embedded
// SQLite database opened via github.com/mattn/go-sqlite3. One table per
// entity type holds the full entity as a JSON body column alongside the
// envelope fields needed for indexed lookups, mirroring the table-per-type
// layout of the teacher's own SQLite-backed tooling.
package native

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"entitystack/entity"
	"entitystack/errors"
	"entitystack/txn"
)

// execer is the subset of *sql.DB and *sql.Tx that Store needs, so the
// same query code runs identically inside and outside a transaction.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Store is the generic SQLite-backed Adapter[T] implementation.
type Store[T entity.Entity] struct {
	db    *sql.DB
	table string
	newT  entity.New[T]
}

// NewStore opens (creating if absent) the table backing entity type
// table, using newT to allocate a zero-value T when decoding rows.
func NewStore[T entity.Entity](db *sql.DB, table string, newT entity.New[T]) (*Store[T], error) {
	s := &Store[T]{db: db, table: table, newT: newT}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		sync_status TEXT NOT NULL DEFAULT 'local',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		body TEXT NOT NULL
	)`, table)
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(table, fmt.Errorf("create table: %w", err))
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_sync_status ON %s(sync_status)`, table, table)); err != nil {
		return nil, errors.Wrap(table, fmt.Errorf("create sync_status index: %w", err))
	}
	return s, nil
}

func (s *Store[T]) decode(body string) (T, error) {
	e := s.newT()
	if err := e.FromJSON([]byte(body)); err != nil {
		var zero T
		return zero, errors.Wrap(s.table, fmt.Errorf("decode body: %w", err))
	}
	return e, nil
}

func (s *Store[T]) FindByID(id int64) (T, error) {
	e, _, err := s.findOneChecked(s.db, "id = ?", id)
	return e, err
}

func (s *Store[T]) FindByUUID(uuid string) (T, error) {
	e, _, err := s.findOneChecked(s.db, "uuid = ?", uuid)
	return e, err
}

// findOneChecked reports whether a row was found via the bool result
// rather than nil-checking T: T is typically a pointer entity type, and a
// zero T is a nil pointer whose promoted Base methods (GetUUID, ...)
// dereference that nil pointer and panic if called.
func (s *Store[T]) findOneChecked(ex execer, where string, arg interface{}) (T, bool, error) {
	var zero T
	row := ex.QueryRow(fmt.Sprintf("SELECT body FROM %s WHERE %s", s.table, where), arg)
	var body string
	switch err := row.Scan(&body); err {
	case nil:
		e, err := s.decode(body)
		if err != nil {
			return zero, false, err
		}
		return e, true, nil
	case sql.ErrNoRows:
		return zero, false, nil
	default:
		return zero, false, errors.Query(s.table, err)
	}
}

func (s *Store[T]) GetByID(id int64) (T, error) {
	e, found, err := s.findOneChecked(s.db, "id = ?", id)
	if err != nil {
		return e, err
	}
	if !found {
		return e, errors.NotFound(s.table, "id", fmt.Sprint(id))
	}
	return e, nil
}

func (s *Store[T]) GetByUUID(u string) (T, error) {
	e, found, err := s.findOneChecked(s.db, "uuid = ?", u)
	if err != nil {
		return e, err
	}
	if !found {
		return e, errors.NotFound(s.table, "uuid", u)
	}
	return e, nil
}

func (s *Store[T]) FindAll() ([]T, error) { return s.findAll(s.db, "") }
func (s *Store[T]) FindUnsynced() ([]T, error) {
	return s.findAll(s.db, "WHERE sync_status = 'local'")
}

func (s *Store[T]) findAll(ex execer, whereClause string) ([]T, error) {
	rows, err := ex.Query(fmt.Sprintf("SELECT body FROM %s %s ORDER BY id", s.table, whereClause))
	if err != nil {
		return nil, errors.Query(s.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Query(s.table, err)
		}
		e, err := s.decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Query(s.table, err)
	}
	return out, nil
}

func (s *Store[T]) Count() (int64, error) {
	var n int64
	row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table))
	if err := row.Scan(&n); err != nil {
		return 0, errors.Query(s.table, err)
	}
	return n, nil
}

func (s *Store[T]) Save(e T) (T, error)        { return s.save(s.db, e, true) }
func (s *Store[T]) SaveNoTouch(e T) (T, error) { return s.save(s.db, e, false) }

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

func (s *Store[T]) save(ex execer, e T, touch bool) (T, error) {
	var zero T
	if e.GetUUID() == "" {
		e.SetUUID(uuid.NewString())
	}
	now := time.Now().UTC()

	row := ex.QueryRow(fmt.Sprintf("SELECT id, created_at, updated_at FROM %s WHERE uuid = ?", s.table), e.GetUUID())
	var existingID int64
	var existingCreatedAt, existingUpdatedAt string
	err := row.Scan(&existingID, &existingCreatedAt, &existingUpdatedAt)

	switch err {
	case sql.ErrNoRows:
		e.SetCreatedAt(now)
		e.SetUpdatedAt(now)
		body, mErr := e.ToJSON()
		if mErr != nil {
			return zero, errors.Wrap(s.table, mErr)
		}
		res, iErr := ex.Exec(
			fmt.Sprintf("INSERT INTO %s (uuid, sync_status, created_at, updated_at, body) VALUES (?, ?, ?, ?, ?)", s.table),
			e.GetUUID(), string(e.GetSyncStatus()), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), string(body),
		)
		if iErr != nil {
			return zero, errors.Duplicate(s.table, "uuid", iErr)
		}
		id, _ := res.LastInsertId()
		e.SetID(id)
		return e, nil
	case nil:
		e.SetID(existingID)
		if createdAt, pErr := time.Parse(time.RFC3339Nano, existingCreatedAt); pErr == nil {
			e.SetCreatedAt(createdAt)
		}
		if touch && e.TouchOnSave() {
			e.SetUpdatedAt(now)
		} else if updatedAt, pErr := time.Parse(time.RFC3339Nano, existingUpdatedAt); pErr == nil {
			e.SetUpdatedAt(updatedAt)
		}
		body, mErr := e.ToJSON()
		if mErr != nil {
			return zero, errors.Wrap(s.table, mErr)
		}
		if _, uErr := ex.Exec(
			fmt.Sprintf("UPDATE %s SET sync_status = ?, updated_at = ?, body = ? WHERE id = ?", s.table),
			string(e.GetSyncStatus()), e.GetUpdatedAt().Format(time.RFC3339Nano), string(body), existingID,
		); uErr != nil {
			return zero, errors.Query(s.table, uErr)
		}
		return e, nil
	default:
		return zero, errors.Query(s.table, err)
	}
}

func (s *Store[T]) Delete(id int64) (bool, error) { return s.delete(s.db, "id = ?", id) }
func (s *Store[T]) DeleteByUUID(u string) (bool, error) { return s.delete(s.db, "uuid = ?", u) }

func (s *Store[T]) delete(ex execer, where string, arg interface{}) (bool, error) {
	res, err := ex.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", s.table, where), arg)
	if err != nil {
		return false, errors.Query(s.table, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func nativeTx(ctx txn.Context) (*sql.Tx, error) {
	nc, ok := ctx.(*txn.NativeContext)
	if !ok {
		return nil, errors.Transaction("", fmt.Errorf("expected native backend transaction context, got %T", ctx))
	}
	return nc.Tx, nil
}

func (s *Store[T]) SaveInTx(ctx txn.Context, e T) (T, error) {
	var zero T
	tx, err := nativeTx(ctx)
	if err != nil {
		return zero, err
	}
	return s.save(tx, e, true)
}

func (s *Store[T]) SaveAllInTx(ctx txn.Context, es []T) ([]T, error) {
	tx, err := nativeTx(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(es))
	for _, e := range es {
		saved, err := s.save(tx, e, true)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *Store[T]) FindByIDInTx(ctx txn.Context, id int64) (T, error) {
	var zero T
	tx, err := nativeTx(ctx)
	if err != nil {
		return zero, err
	}
	e, _, err := s.findOneChecked(tx, "id = ?", id)
	return e, err
}

func (s *Store[T]) FindByUUIDInTx(ctx txn.Context, u string) (T, error) {
	var zero T
	tx, err := nativeTx(ctx)
	if err != nil {
		return zero, err
	}
	e, _, err := s.findOneChecked(tx, "uuid = ?", u)
	return e, err
}

func (s *Store[T]) FindAllInTx(ctx txn.Context) ([]T, error) {
	tx, err := nativeTx(ctx)
	if err != nil {
		return nil, err
	}
	return s.findAll(tx, "")
}

func (s *Store[T]) DeleteInTx(ctx txn.Context, id int64) error {
	tx, err := nativeTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.delete(tx, "id = ?", id)
	return err
}

func (s *Store[T]) DeleteByUUIDInTx(ctx txn.Context, u string) error {
	tx, err := nativeTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.delete(tx, "uuid = ?", u)
	return err
}

func (s *Store[T]) DeleteAllInTx(ctx txn.Context) error {
	tx, err := nativeTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return errors.Query(s.table, err)
	}
	return nil
}

// findByField backs FindByField, FindByFieldInTx and DeleteByFieldInTx,
// which support chunking.Registry and version.Adapter (chunk lookups by
// source entity, version lookups by entity). It is implemented as a client-side
// filter over FindAll rather than a bespoke indexed column per caller,
// since Store is generic over T and cannot know which JSON field in body
// to index without type-specific schema — documented as a scoping
// simplification rather than a missing feature.
func (s *Store[T]) findByField(ex execer, get func(T) string, value string) ([]T, error) {
	all, err := s.findAll(ex, "")
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

func (s *Store[T]) FindByField(value string, get func(T) string) ([]T, error) {
	return s.findByField(s.db, get, value)
}

func (s *Store[T]) FindByFieldInTx(ctx txn.Context, value string, get func(T) string) ([]T, error) {
	tx, err := nativeTx(ctx)
	if err != nil {
		return nil, err
	}
	return s.findByField(tx, get, value)
}

func (s *Store[T]) DeleteByFieldInTx(ctx txn.Context, value string, get func(T) string) error {
	matches, err := s.FindByFieldInTx(ctx, value, get)
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
