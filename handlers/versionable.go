package handlers

import (
	"entitystack/entity"
	"entitystack/logger"
	"entitystack/txn"
	"entitystack/version"
)

// PreviousStateLoader loads the JSON form of an entity as it stood before
// the current save, from inside the save transaction. The repository
// (which is generic over the concrete entity type) implements this by
// delegating to its own adapter; it returns (nil, nil) for an entity
// being saved for the first time.
type PreviousStateLoader interface {
	PreviousJSON(ctx txn.Context, uuid string) ([]byte, error)
}

// VersionableHandler records one immutable delta per save (spec.md §4.7
// handler 3 / §4.6). Without a transaction coordinator the repository
// never calls BeforeSaveInTransaction at all, so this handler only ever
// runs when versioning can be atomic with the row write; HasCoordinator
// exists purely so BeforeSave can log the degraded-mode warning once per
// save instead of silently dropping history.
type VersionableHandler struct {
	Base
	Store          *version.Store
	Loader         PreviousStateLoader
	HasCoordinator bool
}

func NewVersionableHandler(store *version.Store, loader PreviousStateLoader, hasCoordinator bool) *VersionableHandler {
	return &VersionableHandler{Store: store, Loader: loader, HasCoordinator: hasCoordinator}
}

func (h *VersionableHandler) BeforeSave(e entity.Entity) error {
	if _, ok := e.(entity.Versionable); !ok {
		return nil
	}
	if !h.HasCoordinator {
		logger.Warn("versionable handler: no transaction coordinator configured; %s %s saves without version history", e.TypeName(), e.GetUUID())
	}
	return nil
}

func (h *VersionableHandler) BeforeSaveInTransaction(ctx txn.Context, e entity.Entity) error {
	v, ok := e.(entity.Versionable)
	if !ok {
		return nil
	}

	prevJSON, err := h.Loader.PreviousJSON(ctx, v.GetUUID())
	if err != nil {
		return err
	}
	newJSON, err := v.ToJSON()
	if err != nil {
		return err
	}

	_, err = h.Store.RecordVersion(ctx, v.TypeName(), v.GetUUID(), prevJSON, newJSON, v.SnapshotFrequency(), "", "")
	return err
}
