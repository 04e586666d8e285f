// Package handlers implements the lifecycle hook chain of spec.md §4.7:
// a fixed set of optional hooks invoked in declared order around every
// repository save and delete.
package handlers

import (
	"entitystack/entity"
	"entitystack/txn"
)

// Handler is the six-hook lifecycle surface every built-in and
// application-defined handler implements. beforeSave/afterSave/
// beforeDelete run outside any transaction and may do I/O; the
// *InTransaction hooks run synchronously inside the repository's
// transaction and must not suspend.
type Handler interface {
	BeforeSave(e entity.Entity) error
	BeforeSaveInTransaction(ctx txn.Context, e entity.Entity) error
	AfterSaveInTransaction(ctx txn.Context, e entity.Entity) error
	AfterSave(e entity.Entity)
	BeforeDelete(e entity.Entity) error
	BeforeDeleteInTransaction(ctx txn.Context, e entity.Entity) error
}

// Base is a no-op implementation of every hook. Concrete handlers embed
// it and override only the hooks they need.
type Base struct{}

func (Base) BeforeSave(entity.Entity) error { return nil }
func (Base) BeforeSaveInTransaction(txn.Context, entity.Entity) error { return nil }
func (Base) AfterSaveInTransaction(txn.Context, entity.Entity) error { return nil }
func (Base) AfterSave(entity.Entity) {}
func (Base) BeforeDelete(entity.Entity) error { return nil }
func (Base) BeforeDeleteInTransaction(txn.Context, entity.Entity) error { return nil }
