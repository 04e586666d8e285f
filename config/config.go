// Package config centralizes the environment-variable-driven settings
// for the storage and indexing components. No component reads Config
// itself: the components take these values as constructor arguments or
// fields, and only cmd/entitystack-inspect calls Load. Following the
// teacher's config package, every value has a hardcoded default and can
// be overridden by a single ENTITYSTACK_* environment variable; there is
// no config file format.
package config

import (
	"os"
	"strconv"
)

// Config holds the core's settings, to be passed to its constructors.
type Config struct {
	// DataPath is the root directory for Backend A's SQLite file and
	// Backend B's bbolt file.
	// Environment: ENTITYSTACK_DATA_PATH
	DataPath string

	// NativeDBFile is the SQLite filename created under DataPath.
	// Environment: ENTITYSTACK_NATIVE_DB_FILE
	NativeDBFile string

	// WebDBFile is the bbolt filename created under DataPath.
	// Environment: ENTITYSTACK_WEB_DB_FILE
	WebDBFile string

	// EmbeddingDimension is the fixed vector width every Embeddable
	// entity type and the HNSW index are built for (spec.md §6).
	// Environment: ENTITYSTACK_EMBEDDING_DIMENSION
	EmbeddingDimension int

	// DefaultSnapshotFrequency is the N a Versionable entity type uses
	// when it has no stronger opinion of its own (spec.md §4.6): v1 and
	// every Nth version after it (1, N+1, 2N+1, ...) store a full
	// snapshot. Note's SnapshotFrequency is fixed in code and does not
	// read it.
	// Environment: ENTITYSTACK_SNAPSHOT_FREQUENCY
	DefaultSnapshotFrequency int

	// ParentWindowSize/ParentOverlap and ChildWindowSize/ChildOverlap
	// mirror the chunking.Preset pair (spec.md §4.4); the presets
	// themselves are fixed in chunking/preset.go and do not read them.
	// Environment: ENTITYSTACK_CHUNK_PARENT_WINDOW / _PARENT_OVERLAP /
	// _CHILD_WINDOW / _CHILD_OVERLAP
	ParentWindowSize int
	ParentOverlap    int
	ChildWindowSize  int
	ChildOverlap     int

	// HNSWFlushEvery is the flushEvery value for web.NewVectorStore: the
	// mutation count after which Backend B's VectorStore persists its
	// in-memory index (spec.md §4.3).
	// Environment: ENTITYSTACK_HNSW_FLUSH_EVERY
	HNSWFlushEvery int

	// EmbedQueueMaxIterations is the value for embedqueue.Queue's
	// MaxIterations, which caps how many pending tasks a single Flush call
	// drains (spec.md §4.5).
	// Environment: ENTITYSTACK_EMBED_QUEUE_MAX_ITERATIONS
	EmbedQueueMaxIterations int

	// LogLevel is a level name for logger.SetLevelName.
	// Environment: ENTITYSTACK_LOG_LEVEL
	LogLevel string
}

// Load builds a Config from environment variables, falling back to the
// defaults below for anything unset.
func Load() *Config {
	return &Config{
		DataPath:     getEnv("ENTITYSTACK_DATA_PATH", "./var"),
		NativeDBFile: getEnv("ENTITYSTACK_NATIVE_DB_FILE", "entitystack.sqlite"),
		WebDBFile:    getEnv("ENTITYSTACK_WEB_DB_FILE", "entitystack.bbolt"),

		EmbeddingDimension:       getEnvInt("ENTITYSTACK_EMBEDDING_DIMENSION", 384),
		DefaultSnapshotFrequency: getEnvInt("ENTITYSTACK_SNAPSHOT_FREQUENCY", 10),

		ParentWindowSize: getEnvInt("ENTITYSTACK_CHUNK_PARENT_WINDOW", 200),
		ParentOverlap:    getEnvInt("ENTITYSTACK_CHUNK_PARENT_OVERLAP", 50),
		ChildWindowSize:  getEnvInt("ENTITYSTACK_CHUNK_CHILD_WINDOW", 30),
		ChildOverlap:     getEnvInt("ENTITYSTACK_CHUNK_CHILD_OVERLAP", 10),

		HNSWFlushEvery:          getEnvInt("ENTITYSTACK_HNSW_FLUSH_EVERY", 50),
		EmbedQueueMaxIterations: getEnvInt("ENTITYSTACK_EMBED_QUEUE_MAX_ITERATIONS", 100),

		LogLevel: getEnv("ENTITYSTACK_LOG_LEVEL", "info"),
	}
}

// NativeDBPath returns the full path to the Backend A database file.
func (c *Config) NativeDBPath() string { return c.DataPath + "/" + c.NativeDBFile }

// WebDBPath returns the full path to the Backend B database file.
func (c *Config) WebDBPath() string { return c.DataPath + "/" + c.WebDBFile }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
