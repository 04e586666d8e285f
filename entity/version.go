package entity

import (
	"encoding/json"
	"time"
)

// Version is an immutable record of one entity's state transition,
// persisted by the version store (spec §4.6). It is never mutated after
// insertion; CreatedAt == UpdatedAt == Timestamp always.
type Version struct {
	Base
	EntityType        string          `json:"entityType"`
	EntityUUID        string          `json:"entityUuid"`
	VersionNumber     int             `json:"versionNumber"`
	Timestamp         time.Time       `json:"timestamp"`
	DeltaJSON         json.RawMessage `json:"deltaJson,omitempty"`
	ChangedFields     []string        `json:"changedFields,omitempty"`
	IsSnapshot        bool            `json:"isSnapshot"`
	SnapshotJSON      json.RawMessage `json:"snapshotJson,omitempty"`
	UserID            string          `json:"userId,omitempty"`
	ChangeDescription string          `json:"changeDescription,omitempty"`
}

func (v *Version) TypeName() string  { return "entity_version" }
func (v *Version) TouchOnSave() bool { return false } // immutable: never refresh updatedAt

func (v *Version) ToJSON() ([]byte, error)    { return json.Marshal(v) }
func (v *Version) FromJSON(data []byte) error { return json.Unmarshal(data, v) }
