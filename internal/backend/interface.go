package backend

import (
	"context"

	"posreports/internal/amqp"
	"posreports/internal/core"
	"posreports/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the data plumbing the reporting service runs on.
type BackendResult struct {
	Source   sheets.RowSource
	Store    sheets.SnapshotStore
	Locators map[core.SheetType]string
	// Queue is nil when AMQP is not configured or not reachable.
	Queue   *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Google Sheets specific
	MainSheetURL    string
	SalesSheetURL   string
	CredentialsJSON string

	// Memory backend specific
	DataDirectory string

	Snapshots    SnapshotType
	SnapshotDir  string
	SQLiteDBPath string

	// Optional refresh queue
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType selects where sheet rows come from.
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// SnapshotType selects where snapshots are kept.
type SnapshotType string

const (
	FileSnapshots   SnapshotType = "file"
	SQLiteSnapshots SnapshotType = "sqlite"
)

func (st SnapshotType) IsValid() bool {
	return st == FileSnapshots || st == SQLiteSnapshots
}
