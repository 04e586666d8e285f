package entity

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of an EmbeddingTask.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskInflight  TaskStatus = "inflight"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// EmbeddingTask is a durable background job that fills in an entity's
// embedding after the entity itself has already been saved (spec §4.5).
type EmbeddingTask struct {
	Base
	EntityUUID  string     `json:"entityUuid"`
	EntityType  string     `json:"entityType"`
	Text        string     `json:"text"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	EnqueuedAt  time.Time  `json:"enqueuedAt"`
	LastError   string     `json:"lastError,omitempty"`
}

func (t *EmbeddingTask) TypeName() string  { return "embedding_task" }
func (t *EmbeddingTask) TouchOnSave() bool { return true }

func (t *EmbeddingTask) ToJSON() ([]byte, error)    { return json.Marshal(t) }
func (t *EmbeddingTask) FromJSON(data []byte) error { return json.Unmarshal(data, t) }
