package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"kettlebridge/internal/bus"
	"kettlebridge/internal/connectors"
	"kettlebridge/internal/device"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_CreatesSchemaAtCurrentVersion(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("expected schema version %d, got %d", schemaVersion, version)
	}

	var table string
	if err := db.QueryRowContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name = 'changes'
	`).Scan(&table); err != nil {
		t.Fatalf("expected changes table: %v", err)
	}
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	first, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	repo := NewRepo(first)
	if err := repo.Append(ctx, time.Now(), device.Change{Field: device.FieldPower, Old: "unknown", New: "on"}); err != nil {
		t.Fatalf("append change: %v", err)
	}
	_ = first.Close()

	second, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer func() { _ = second.Close() }()

	entries, err := NewRepo(second).Recent(ctx, 10)
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry after reopen, got %d", len(entries))
	}
}

func TestRepoAppendAndRecent_NewestFirst(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewRepo(db)
	base := time.Now().Add(-time.Minute)
	steps := []device.Change{
		{Field: device.FieldPower, Old: "unknown", New: "on"},
		{Field: device.FieldCurrentTemp, Old: "unknown", New: "40"},
		{Field: device.FieldCurrentTemp, Old: "40", New: "41"},
	}
	for i, change := range steps {
		if err := repo.Append(ctx, base.Add(time.Duration(i)*time.Second), change); err != nil {
			t.Fatalf("append change %d: %v", i, err)
		}
	}

	entries, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Field != device.FieldCurrentTemp || entries[0].New != "41" {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}
	if entries[1].New != "40" {
		t.Fatalf("expected second newest entry, got %+v", entries[1])
	}
	wantAt := base.Add(2 * time.Second).UnixMilli()
	if entries[0].At.UnixMilli() != wantAt {
		t.Fatalf("expected timestamp %d, got %d", wantAt, entries[0].At.UnixMilli())
	}
}

func TestRepoPruneOlderThan_RemovesOldRows(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewRepo(db)
	now := time.Now()
	if err := repo.Append(ctx, now.Add(-48*time.Hour), device.Change{Field: device.FieldPower, Old: "on", New: "off"}); err != nil {
		t.Fatalf("append old change: %v", err)
	}
	if err := repo.Append(ctx, now, device.Change{Field: device.FieldPower, Old: "off", New: "on"}); err != nil {
		t.Fatalf("append fresh change: %v", err)
	}

	pruned, err := repo.PruneOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune changes: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected one pruned row, got %d", pruned)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	if len(entries) != 1 || entries[0].New != "on" {
		t.Fatalf("expected only the fresh entry, got %+v", entries)
	}
}

func TestStartSync_PersistsPublishedChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := testLogger()
	repo := NewRepo(db)
	queue := NewWriterQueue(logger, 8)
	queue.Start(ctx)

	b := bus.New(logger)
	defer b.Close()

	StartSync(ctx, logger, b, queue, repo)
	b.Publish(connectors.TopicStateChange, device.Change{Field: device.FieldTargetTemp, Old: "unknown", New: "85"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := repo.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("list changes: %v", err)
		}
		if len(entries) == 1 {
			if entries[0].Field != device.FieldTargetTemp || entries[0].New != "85" {
				t.Fatalf("unexpected journal entry: %+v", entries[0])
			}
			if entries[0].At.IsZero() {
				t.Fatalf("expected entry timestamp to be set")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("change never reached the journal")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
