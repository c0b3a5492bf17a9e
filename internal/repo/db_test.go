package repo

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

func TestOpen(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"unknown driver", Options{Driver: "mysql"}, true},
		{"postgres without url", Options{Driver: DriverPostgres, URL: "  "}, true},
		{"sqlite missing dir", Options{Path: filepath.Join(t.TempDir(), "nope", "room.db")}, true},
		{"sqlite", Options{Driver: "SQLite", Path: filepath.Join(t.TempDir(), "room.db")}, false},
		{"sqlite traced", Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "traced.db"), Tracing: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, err := Open(tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			sqlDB, _ := db.DB()
			t.Cleanup(func() { _ = sqlDB.Close() })
			if err := AutoMigrate(db); err != nil {
				t.Fatalf("AutoMigrate: %v", err)
			}
		})
	}
}

func TestOpenSQLite_ConnectionSettings(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "room.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, want := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + name).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		if strings.ToLower(got) != want {
			t.Errorf("PRAGMA %s = %q, want %q", name, got, want)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != sqlitePool.maxOpen {
		t.Errorf("MaxOpenConnections = %d, want %d", n, sqlitePool.maxOpen)
	}
}

func TestAutoMigrate_SchemaAndConstraints(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "room.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	for i := 0; i < 2; i++ {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("AutoMigrate run %d: %v", i+1, err)
		}
	}
	if !db.Migrator().HasIndex(&domain.Session{}, "ux_sessions_open_tag") {
		t.Fatal("missing partial index ux_sessions_open_tag")
	}

	now := time.Now().UTC()
	open := func(id string) *domain.Session {
		return &domain.Session{ID: id, StoreID: "st1", TeamMemberID: "tm1", Tag: "042", Status: domain.SessionInProgress, EntryTime: now}
	}
	if err := db.Create(open("s1")).Error; err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if err := db.Create(open("s2")).Error; err == nil {
		t.Fatal("second open session on the same tag must be rejected")
	}
	closed := open("s3")
	closed.Status = domain.SessionComplete
	if err := db.Create(closed).Error; err != nil {
		t.Fatalf("closed session may reuse the tag: %v", err)
	}

	orphan := &domain.Item{ID: "i1", SessionID: "missing", Seq: 1, Barcode: "SKU1", Status: domain.ItemInRoom, ScannedInAt: now}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatal("expected FK violation for an item without a session")
	}
}

func TestZerologWriter(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	zerologWriter{}.Printf("SLOW SQL >= %v\n[%.3fms] %s", slowQuery, 250.0, "SELECT 1")
	out := buf.String()
	if !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, "SELECT 1") || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}
