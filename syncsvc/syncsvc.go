// Package syncsvc declares the boundary to an external remote-sync
// transport. spec.md §6 specifies RemoteSyncService as opaque: it marks
// rows synced/pendingPush through the normal save path and is explicitly
// out of scope for this module to implement.
package syncsvc

import "entitystack/entity"

// RemoteSyncService is implemented by an application's own sync
// transport. The core never calls it directly; an application wires it
// into its own save flow (e.g. a handlers.Handler or a post-save hook)
// to push local changes and update SyncStatus via the entity's normal
// setters, then calls repository.Save again through the usual path.
type RemoteSyncService interface {
	// Push uploads e's current JSON form and reports the sync status it
	// should be recorded under locally.
	Push(e entity.Entity) (entity.SyncStatus, error)
	// Pull fetches a remote entity's current JSON form by uuid, or
	// (nil, nil) if the remote has nothing for it.
	Pull(entityType, uuid string) ([]byte, error)
}
