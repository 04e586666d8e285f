// Package version implements the append-only version history engine of
// spec.md §4.6: one immutable delta (plus periodic full snapshot) per
// save of a Versionable entity, and reconstruction of any past state by
// applying deltas forward from the nearest preceding snapshot.
package version

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"entitystack/entity"
	"entitystack/txn"
)

// Adapter is the persistence surface the version store needs for
// entity.Version rows. storage/native and storage/web's Store[*entity.Version]
// both satisfy this directly: SaveInTx matches storage.Adapter's generic
// signature, and FindByField(InTx) is the client-side-filter helper both
// backends expose for entity-specific lookups (see DESIGN.md's "client-side
// filtering" decision) rather than a dedicated entityUuid index.
type Adapter interface {
	SaveInTx(ctx txn.Context, v *entity.Version) (*entity.Version, error)
	FindByFieldInTx(ctx txn.Context, value string, get func(*entity.Version) string) ([]*entity.Version, error)
	FindByField(value string, get func(*entity.Version) string) ([]*entity.Version, error)
}

func byEntityUUID(v *entity.Version) string { return v.EntityUUID }

// Store records and reconstructs version history for one entity type.
type Store struct {
	Adapter Adapter
}

func New(adapter Adapter) *Store {
	return &Store{Adapter: adapter}
}

// RecordVersion computes the delta from prevJSON to newJSON and persists
// a new entity.Version row inside ctx. It must run inside the caller's
// save transaction (spec.md §4.6 step 8) so versionNumber assignment sees
// "read your writes" isolation against concurrent saves of the same
// entity.
func (s *Store) RecordVersion(ctx txn.Context, entityType, entityUUID string, prevJSON, newJSON []byte, snapshotFrequency int, userID, changeDescription string) (*entity.Version, error) {
	existing, err := s.Adapter.FindByFieldInTx(ctx, entityUUID, byEntityUUID)
	if err != nil {
		return nil, fmt.Errorf("version: load existing versions: %w", err)
	}
	versionNumber := latest(existing) + 1

	deltaJSON, changedFields, err := diff(prevJSON, newJSON)
	if err != nil {
		return nil, err
	}

	isSnapshot := versionNumber == 1 || (snapshotFrequency > 0 && versionNumber%snapshotFrequency == 1)

	now := time.Now().UTC()
	v := &entity.Version{
		EntityType:        entityType,
		EntityUUID:        entityUUID,
		VersionNumber:     versionNumber,
		Timestamp:         now,
		DeltaJSON:         json.RawMessage(deltaJSON),
		ChangedFields:     changedFields,
		IsSnapshot:        isSnapshot,
		UserID:            userID,
		ChangeDescription: changeDescription,
	}
	if isSnapshot {
		v.SnapshotJSON = json.RawMessage(newJSON)
	}
	v.SetUUID(uuid.NewString())
	v.SetCreatedAt(now)
	v.SetUpdatedAt(now)

	if _, err := s.Adapter.SaveInTx(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// LatestVersionNumber returns the highest versionNumber recorded for
// entityUUID, or 0 if none exist.
func (s *Store) LatestVersionNumber(entityUUID string) (int, error) {
	versions, err := s.Adapter.FindByField(entityUUID, byEntityUUID)
	if err != nil {
		return 0, err
	}
	return latest(versions), nil
}

func latest(versions []*entity.Version) int {
	max := 0
	for _, v := range versions {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max
}

// StateAt reconstructs the entity's JSON form as of versionNumber n: it
// finds the greatest snapshot version s <= n, then applies every delta in
// (s, n] in order.
func (s *Store) StateAt(entityUUID string, n int) (json.RawMessage, error) {
	versions, err := s.Adapter.FindByField(entityUUID, byEntityUUID)
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].VersionNumber < versions[j].VersionNumber })

	var base json.RawMessage
	var snapshotVN int
	for _, v := range versions {
		if v.VersionNumber > n {
			break
		}
		if v.IsSnapshot {
			base = v.SnapshotJSON
			snapshotVN = v.VersionNumber
		}
	}
	if base == nil {
		return nil, fmt.Errorf("version: no snapshot at or before version %d for %s", n, entityUUID)
	}

	state := []byte(base)
	for _, v := range versions {
		if v.VersionNumber <= snapshotVN || v.VersionNumber > n {
			continue
		}
		patch, err := jsonpatch.DecodePatch(v.DeltaJSON)
		if err != nil {
			return nil, fmt.Errorf("version: decode delta v%d: %w", v.VersionNumber, err)
		}
		state, err = patch.Apply(state)
		if err != nil {
			return nil, fmt.Errorf("version: apply delta v%d: %w", v.VersionNumber, err)
		}
	}
	return state, nil
}
