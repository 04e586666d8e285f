// Package entity defines the core persistable data model shared by every
// storage backend: the base envelope every row carries, the capability
// interfaces a concrete entity type may opt into, and the handful of
// built-in record types (edges, versions, chunks, embedding tasks) the
// rest of the module needs regardless of what application entities look
// like.
package entity

import (
	"reflect"
	"time"
)

// SyncStatus tracks where a row stands with respect to an external
// RemoteSyncService. The core never talks to a sync transport itself; it
// only stores and reports this status.
type SyncStatus string

const (
	SyncLocal       SyncStatus = "local"
	SyncSynced      SyncStatus = "synced"
	SyncPendingPush SyncStatus = "pendingPush"
	SyncConflict    SyncStatus = "conflict"
)

// Base is the envelope embedded by every persistable entity type. An
// unassigned ID is 0; adapters assign the next integer id on first save.
type Base struct {
	ID                int64      `json:"id"`
	UUID              string     `json:"uuid"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	SyncCorrelationID string     `json:"syncCorrelationId,omitempty"`
	Sync              SyncStatus `json:"syncStatus"`
}

func (b *Base) GetID() int64          { return b.ID }
func (b *Base) SetID(id int64)        { b.ID = id }
func (b *Base) GetUUID() string       { return b.UUID }
func (b *Base) SetUUID(u string)      { b.UUID = u }
func (b *Base) GetCreatedAt() time.Time { return b.CreatedAt }
func (b *Base) SetCreatedAt(t time.Time) { b.CreatedAt = t }
func (b *Base) GetUpdatedAt() time.Time { return b.UpdatedAt }
func (b *Base) SetUpdatedAt(t time.Time) { b.UpdatedAt = t }
func (b *Base) GetSyncStatus() SyncStatus { return b.Sync }
func (b *Base) SetSyncStatus(s SyncStatus) { b.Sync = s }

// Entity is the minimum contract every persistable type must satisfy.
// TypeName identifies the entity type for version tags, chunk registry
// entries and error messages (e.g. "note", "edge", "entity_version").
// TouchOnSave reports whether UpdatedAt should be refreshed on a
// mutating save; immutable types such as EntityVersion return false.
type Entity interface {
	GetID() int64
	SetID(int64)
	GetUUID() string
	SetUUID(string)
	GetCreatedAt() time.Time
	SetCreatedAt(time.Time)
	GetUpdatedAt() time.Time
	SetUpdatedAt(time.Time)
	GetSyncStatus() SyncStatus
	SetSyncStatus(SyncStatus)

	TypeName() string
	TouchOnSave() bool

	ToJSON() ([]byte, error)
	FromJSON([]byte) error
}

// New is implemented by a factory function adapters use to allocate a
// zero-value T before decoding into it. Go generics have no "new T()"
// for interface-constrained T, so adapters take this as a constructor
// argument rather than relying on reflection.
type New[T Entity] func() T

// IsNil reports whether e wraps a nil concrete value. Entity
// implementations in this module are pointer types (e.g. *Note), so the
// "not found" sentinel an adapter returns is a nil pointer boxed in the
// Entity interface; a plain "e == nil" check on that interface value is
// false even though calling any method on e would panic. Callers that
// receive an Entity from an adapter's find* method must check this
// instead of a direct nil comparison.
func IsNil(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	if v.Kind() == reflect.Ptr {
		return v.IsNil()
	}
	return false
}
