package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"posreports/internal/config"
	"posreports/internal/core"
	"posreports/internal/sheets/memory"
	"posreports/internal/snapshot"
	"posreports/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:     "memory",
		MemoryDataDir:   "./seed",
		MainSheetURL:    "main-id",
		SnapshotBackend: "sqlite",
		SQLiteDBPath:    "./data/x.db",
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != MemoryBackend || got.Snapshots != SQLiteSnapshots || got.DataDirectory != "./seed" || got.MainSheetURL != "main-id" {
		t.Fatalf("unexpected config %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestCreateMemoryBackendWithFileSnapshots(t *testing.T) {
	seed := t.TempDir()
	if err := os.WriteFile(filepath.Join(seed, "main.csv"), []byte("date,invoice\n01-JAN-25 10.00.00 AM,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:          MemoryBackend,
		DataDirectory: seed,
		Snapshots:     FileSnapshots,
		SnapshotDir:   filepath.Join(t.TempDir(), "snapshots"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if _, ok := res.Source.(*memory.Source); !ok {
		t.Fatalf("source = %T, want *memory.Source", res.Source)
	}
	if _, ok := res.Store.(*snapshot.FileStore); !ok {
		t.Fatalf("store = %T, want *snapshot.FileStore", res.Store)
	}
	if res.Locators[core.SheetMain] != "main" || res.Locators[core.SheetSales] != "sales" {
		t.Fatalf("memory locators should default to sheet names: %v", res.Locators)
	}
	if res.Queue != nil {
		t.Fatal("no queue expected without AMQP URL")
	}

	rows, err := res.Source.FetchRows(context.Background(), res.Locators[core.SheetMain])
	if err != nil || len(rows) != 2 {
		t.Fatalf("FetchRows = %v, %v", rows, err)
	}
}

func TestCreateSheetsBackendWithSQLiteSnapshots(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:         SheetsBackend,
		MainSheetURL: "https://docs.google.com/spreadsheets/d/abc/edit",
		Snapshots:    SQLiteSnapshots,
		SQLiteDBPath: filepath.Join(t.TempDir(), "snap.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if _, ok := res.Store.(*storage.SQLiteRepository); !ok {
		t.Fatalf("store = %T, want *storage.SQLiteRepository", res.Store)
	}
	if res.Locators[core.SheetSales] != "" {
		t.Fatalf("unset sheets locator must stay empty: %v", res.Locators)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	tests := []Config{
		{Type: "postgres", Snapshots: FileSnapshots, SnapshotDir: "x"},
		{Type: MemoryBackend, Snapshots: "redis"},
		{Type: MemoryBackend, Snapshots: FileSnapshots},
		{Type: MemoryBackend, Snapshots: SQLiteSnapshots},
	}
	for _, cfg := range tests {
		if _, err := NewFactory(nil).CreateBackend(context.Background(), cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
