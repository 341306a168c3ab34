package sheets

import (
	"context"

	"posreports/internal/core"
)

// Ports for outbound adapters.
type (
	// RowSource reads every row of the first worksheet of the spreadsheet
	// identified by locator (a URL or a bare spreadsheet id), header included.
	// Failures are classified with the core sentinel errors.
	RowSource interface {
		FetchRows(ctx context.Context, locator string) ([][]any, error)
	}

	// SnapshotStore keeps the last good copy of each sheet. Save returns
	// core.ErrStaleSnapshot when a snapshot at least as recent is already stored.
	SnapshotStore interface {
		Load(ctx context.Context, sheet core.SheetType) (core.Snapshot, bool, error)
		Save(ctx context.Context, snap core.Snapshot) error
	}
)
