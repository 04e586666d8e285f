// Package embedqueue implements the durable background embedding queue of
// spec.md §4.5: entities can be saved without blocking on an embedding
// call, with a worker task filling the vector in afterward via a
// touch=false write-back.
package embedqueue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"entitystack/embedding"
	"entitystack/entity"
	"entitystack/logger"
	"entitystack/storage"
)

// defaultMaxIterations is the circuit-breaker cap spec.md §4.5 asks for,
// so a misbehaving writer or a queue that keeps growing under load can
// never make flush() loop forever.
const defaultMaxIterations = 100

// EntityWriter writes a computed embedding back onto one entity type. The
// repository package registers one per Embeddable entity type it manages,
// since the queue itself is not generic over entity types.
type EntityWriter interface {
	// WriteEmbedding loads the entity by uuid, sets its embedding via
	// SetEmbedding, and saves it back with touch=false. found is false if
	// the entity no longer exists — the caller must not treat that as an
	// error (spec.md §4.5: the task completes, it does not fail).
	WriteEmbedding(entityUUID string, vector []float32) (found bool, err error)
}

// Queue is the persistent job queue. Tasks are themselves entities,
// persisted through the same storage.Adapter mechanism as application
// data (spec.md §4.5), so the queue survives process restarts without a
// bespoke storage format.
type Queue struct {
	Tasks         storage.Adapter[*entity.EmbeddingTask]
	Embedder      embedding.Service
	MaxIterations int

	mu      sync.Mutex
	writers map[string]EntityWriter
}

func New(tasks storage.Adapter[*entity.EmbeddingTask], embedder embedding.Service) *Queue {
	return &Queue{
		Tasks:         tasks,
		Embedder:      embedder,
		MaxIterations: defaultMaxIterations,
		writers:       make(map[string]EntityWriter),
	}
}

// RegisterEntityType wires the writer that knows how to save an embedding
// back onto entities of entityType.
func (q *Queue) RegisterEntityType(entityType string, w EntityWriter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writers[entityType] = w
}

// Enqueue records a pending embedding job for entityUUID. text is the
// already-computed embedding input (entity.Embeddable.ToEmbeddingInput());
// an empty text means the caller should not enqueue at all.
func (q *Queue) Enqueue(entityType, entityUUID, text string) (*entity.EmbeddingTask, error) {
	now := time.Now().UTC()
	t := &entity.EmbeddingTask{
		EntityUUID: entityUUID,
		EntityType: entityType,
		Text:       text,
		Status:     entity.TaskPending,
		EnqueuedAt: now,
	}
	t.SetUUID(uuid.NewString())
	return q.Tasks.Save(t)
}

// Flush drains pending tasks synchronously, in enqueue order, up to the
// circuit-breaker cap, and returns how many it processed. Test code calls
// this directly for determinism (spec.md §4.5); a long-running process
// instead runs it on a timer or a dedicated goroutine.
func (q *Queue) Flush() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	all, err := q.Tasks.FindAll()
	if err != nil {
		return 0, err
	}

	var pending []*entity.EmbeddingTask
	for _, t := range all {
		if t.Status == entity.TaskPending {
			pending = append(pending, t)
		}
	}
	// FindAll's row order is not guaranteed to match enqueue order on
	// every backend (bbolt's bucket iteration is key-ordered, not
	// insertion-ordered), so enqueue order is enforced explicitly here.
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
	})

	max := q.MaxIterations
	if max <= 0 {
		max = defaultMaxIterations
	}
	if len(pending) > max {
		pending = pending[:max]
	}

	processed := 0
	for _, t := range pending {
		q.processOne(t)
		processed++
	}
	return processed, nil
}

func (q *Queue) processOne(t *entity.EmbeddingTask) {
	t.Attempts++
	t.Status = entity.TaskInflight
	if _, err := q.Tasks.Save(t); err != nil {
		logger.Warn("embedqueue: marking task %s inflight failed: %v", t.UUID, err)
	}

	writer, ok := q.writers[t.EntityType]
	if !ok {
		t.Status = entity.TaskFailed
		t.LastError = "no writer registered for entity type " + t.EntityType
		q.save(t)
		return
	}

	vector := q.Embedder.Embed(t.Text)
	found, err := writer.WriteEmbedding(t.EntityUUID, vector)
	if err != nil {
		t.Status = entity.TaskFailed
		t.LastError = err.Error()
		q.save(t)
		return
	}
	// found == false means the entity was deleted between enqueue and
	// processing; spec.md §4.5 treats that as a completed task, not a
	// failure, since there is nothing left to fill in.
	t.Status = entity.TaskCompleted
	q.save(t)
}

func (q *Queue) save(t *entity.EmbeddingTask) {
	if _, err := q.Tasks.Save(t); err != nil {
		logger.Warn("embedqueue: saving task %s final state failed: %v", t.UUID, err)
	}
}
