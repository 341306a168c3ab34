package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"posreports/internal/core"
	"posreports/internal/log"
	ports "posreports/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores one snapshot per sheet type in a SQLite database.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ ports.SnapshotStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Snapshot database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the stored snapshot for sheet. The boolean is false when none exists.
func (r *SQLiteRepository) Load(ctx context.Context, sheet core.SheetType) (core.Snapshot, bool, error) {
	var (
		capturedAt int64
		rowsJSON   string
	)
	err := r.db.QueryRowContext(ctx, selectSnapshot, string(sheet)).Scan(&capturedAt, &rowsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("load %s snapshot: %w", sheet, err)
	}

	var rows []core.Row
	if err := json.Unmarshal([]byte(rowsJSON), &rows); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("decode %s snapshot: %w", sheet, err)
	}
	return core.Snapshot{
		SheetType:  sheet,
		CapturedAt: time.Unix(0, capturedAt).UTC(),
		Rows:       rows,
	}, true, nil
}

// Save stores snap unless a snapshot at least as recent is already present,
// in which case core.ErrStaleSnapshot is returned.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	rows := snap.Rows
	if rows == nil {
		rows = []core.Row{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", snap.SheetType, err)
	}

	res, err := r.db.ExecContext(ctx, upsertSnapshot,
		string(snap.SheetType), snap.CapturedAt.UnixNano(), len(rows), string(rowsJSON))
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", snap.SheetType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", snap.SheetType, err)
	}
	if n == 0 {
		return core.ErrStaleSnapshot
	}
	r.logger.DebugContext(ctx, "Snapshot saved",
		log.FieldSheetType, snap.SheetType, log.FieldRowCount, len(rows), log.FieldCapturedAt, snap.CapturedAt)
	return nil
}
