// Package snapshot persists the last good copy of each sheet as a JSON file
// so reports keep working while the remote spreadsheet is unreachable.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"posreports/internal/core"
	ports "posreports/internal/sheets"
)

// FileStore writes "<dir>/<sheet>.json". Files are replaced atomically.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ ports.SnapshotStore = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(sheet core.SheetType) string {
	return filepath.Join(s.dir, string(sheet)+".json")
}

func (s *FileStore) Load(ctx context.Context, sheet core.SheetType) (core.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, false, err
	}
	return s.read(sheet)
}

func (s *FileStore) read(sheet core.SheetType) (core.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path(sheet))
	if errors.Is(err, os.ErrNotExist) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("read %s snapshot: %w", sheet, err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("decode %s snapshot: %w", sheet, err)
	}
	if snap.SheetType == "" {
		snap.SheetType = sheet
	}
	return snap, true, nil
}

// Save replaces the stored snapshot when snap is strictly newer. Otherwise it
// returns core.ErrStaleSnapshot and leaves the file untouched.
func (s *FileStore) Save(ctx context.Context, snap core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	if snap.Rows == nil {
		snap.Rows = []core.Row{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// An unreadable existing file is overwritten rather than blocking new captures.
	if existing, ok, err := s.read(snap.SheetType); err == nil && ok && !snap.CapturedAt.After(existing.CapturedAt) {
		return core.ErrStaleSnapshot
	}

	tmp, err := os.CreateTemp(s.dir, string(snap.SheetType)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s snapshot: %w", snap.SheetType, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s snapshot: %w", snap.SheetType, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s snapshot: %w", snap.SheetType, err)
	}
	if err := os.Rename(tmpName, s.path(snap.SheetType)); err != nil {
		return fmt.Errorf("replace %s snapshot: %w", snap.SheetType, err)
	}
	return nil
}
