// Package edges implements the directed-edge graph layer of spec.md §3:
// edges are stored as ordinary entities with composite identity
// (sourceUuid, targetUuid, edgeType), not as in-memory pointers between
// nodes (spec.md §9, "Cyclic graphs of related entities"). It is
// grounded on the teacher's storage/binary/relationship_repository.go,
// which takes the same approach of layering relationship semantics over
// a generic entity adapter rather than giving relationships their own
// storage engine.
package edges

import (
	"entitystack/entity"
	"entitystack/errors"
	"entitystack/storage"
	"entitystack/txn"
)

// fieldFinder is implemented by both storage/native and storage/web's
// Store[T] to support client-side filtering on a non-indexed field; it
// is not part of storage.Adapter because most entity types never need it.
type fieldFinder interface {
	FindByField(value string, get func(*entity.Edge) string) ([]*entity.Edge, error)
}

// Service wraps a generic entity adapter with edge-specific invariants:
// composite-key uniqueness on create, and the lookups the lifecycle
// handlers and graph traversal need.
type Service struct {
	Adapter storage.Adapter[*entity.Edge]
	fields  fieldFinder
}

// New wraps adapter for edge-specific use. adapter must also implement
// fieldFinder (storage/native and storage/web's Store[T] both do); this
// is checked with a panic at construction time rather than threading an
// extra interface through every caller.
func New(adapter storage.Adapter[*entity.Edge]) *Service {
	ff, ok := adapter.(fieldFinder)
	if !ok {
		panic("edges: adapter does not support FindByField")
	}
	return &Service{Adapter: adapter, fields: ff}
}

// Create inserts a new edge, rejecting a duplicate (sourceUuid, targetUuid,
// edgeType) triple with errors.Duplicate. The backend has no composite
// unique index of its own, so the check is a pre-insert scan over every
// edge sharing the source node, mirroring the teacher's Exists pattern.
func (s *Service) Create(sourceUUID, targetUUID, edgeType string) (*entity.Edge, error) {
	existing, err := s.findBySource(sourceUUID)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.TargetUUID == targetUUID && e.EdgeType == edgeType {
			return nil, errors.Duplicate("edge", "sourceUuid,targetUuid,edgeType", nil)
		}
	}

	e := &entity.Edge{SourceUUID: sourceUUID, TargetUUID: targetUUID, EdgeType: edgeType}
	return s.Adapter.Save(e)
}

func (s *Service) findBySource(uuid string) ([]*entity.Edge, error) {
	return s.fields.FindByField(uuid, func(e *entity.Edge) string { return e.SourceUUID })
}

func (s *Service) findByTarget(uuid string) ([]*entity.Edge, error) {
	return s.fields.FindByField(uuid, func(e *entity.Edge) string { return e.TargetUUID })
}

// GetBySource returns every edge whose source is uuid.
func (s *Service) GetBySource(uuid string) ([]*entity.Edge, error) { return s.findBySource(uuid) }

// GetByTarget returns every edge whose target is uuid.
func (s *Service) GetByTarget(uuid string) ([]*entity.Edge, error) { return s.findByTarget(uuid) }

// GetByType returns every edge of the given type, scanning the full table.
// The teacher's relationship_repository.go does the equivalent tag scan
// for GetByType; a dedicated edgeType index is left to the backend.
func (s *Service) GetByType(edgeType string) ([]*entity.Edge, error) {
	all, err := s.Adapter.FindAll()
	if err != nil {
		return nil, err
	}
	var out []*entity.Edge
	for _, e := range all {
		if e.EdgeType == edgeType {
			out = append(out, e)
		}
	}
	return out, nil
}

// EdgesTouching returns the uuids of every edge referencing entityUUID as
// either source or target, satisfying handlers.EdgeCollector for the
// EdgeCascadeDelete handler.
func (s *Service) EdgesTouching(entityUUID string) ([]string, error) {
	fromSource, err := s.findBySource(entityUUID)
	if err != nil {
		return nil, err
	}
	fromTarget, err := s.findByTarget(entityUUID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fromSource)+len(fromTarget))
	var uuids []string
	for _, e := range fromSource {
		if !seen[e.GetUUID()] {
			seen[e.GetUUID()] = true
			uuids = append(uuids, e.GetUUID())
		}
	}
	for _, e := range fromTarget {
		if !seen[e.GetUUID()] {
			seen[e.GetUUID()] = true
			uuids = append(uuids, e.GetUUID())
		}
	}
	return uuids, nil
}

// DeleteByUUIDInTx deletes one edge inside the caller's transaction,
// satisfying handlers.EdgeCollector.
func (s *Service) DeleteByUUIDInTx(ctx txn.Context, edgeUUID string) error {
	return s.Adapter.DeleteByUUIDInTx(ctx, edgeUUID)
}

// Traverse performs a breadth-first walk from start over edges whose type
// is in edgeTypes (all types, if edgeTypes is empty), up to maxHops hops,
// and returns the uuids of every node reached (not including start).
// This is a supplemented operation: spec.md defines the edge storage
// model but leaves graph traversal to the application; it is added here
// because a local-first entity store with a real edge table is the
// natural place for it, grounded on the same breadth-first approach the
// teacher's graph-adjacent tooling uses for following relationship
// chains one hop at a time.
func (s *Service) Traverse(start string, edgeTypes []string, maxHops int) ([]string, error) {
	allowed := make(map[string]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		allowed[t] = true
	}
	matches := func(edgeType string) bool {
		return len(allowed) == 0 || allowed[edgeType]
	}

	visited := map[string]bool{start: true}
	var order []string
	frontier := []string{start}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			out, err := s.findBySource(node)
			if err != nil {
				return nil, err
			}
			for _, e := range out {
				if !matches(e.EdgeType) || visited[e.TargetUUID] {
					continue
				}
				visited[e.TargetUUID] = true
				order = append(order, e.TargetUUID)
				next = append(next, e.TargetUUID)
			}

			in, err := s.findByTarget(node)
			if err != nil {
				return nil, err
			}
			for _, e := range in {
				if !matches(e.EdgeType) || visited[e.SourceUUID] {
					continue
				}
				visited[e.SourceUUID] = true
				order = append(order, e.SourceUUID)
				next = append(next, e.SourceUUID)
			}
		}
		frontier = next
	}

	return order, nil
}
