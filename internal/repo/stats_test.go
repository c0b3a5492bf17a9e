package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestSessionsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := SessionsStats(context.Background(), db, "st1")
	if err == nil {
		t.Fatalf("expected error due to missing sessions table")
	}
}

func TestSessionsStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Session{})
	count, maxAt, err := SessionsStats(context.Background(), db, "st1")
	if err != nil {
		t.Fatalf("SessionsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestSessionsStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t, &domain.Session{})

	// Seed sessions for two stores; ensure UpdatedAt is exactly what we set.
	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for st1
	t3 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)   // other store

	seed := []*domain.Session{
		{ID: "s1", StoreID: "st1", TeamMemberID: "tm", Tag: "001", Status: domain.SessionComplete, EntryTime: t1, CreatedAt: t1, UpdatedAt: t1},
		{ID: "s2", StoreID: "st1", TeamMemberID: "tm", Tag: "002", Status: domain.SessionInProgress, EntryTime: t2, CreatedAt: t2, UpdatedAt: t2},
		{ID: "s3", StoreID: "st2", TeamMemberID: "tm", Tag: "001", Status: domain.SessionInProgress, EntryTime: t3, CreatedAt: t3, UpdatedAt: t3},
	}
	for _, s := range seed {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("seed %s: %v", s.ID, err)
		}
	}

	count, maxAt, err := SessionsStats(context.Background(), db, "st1")
	if err != nil {
		t.Fatalf("SessionsStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxUpdatedAt %v, got %v", t2, maxAt)
	}
}

// Force the second query (SELECT updated_at ...) to fail by renaming the column.
func TestSessionsStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newTestDB(t, &domain.Session{})

	now := time.Now().UTC()
	if err := db.Create(&domain.Session{
		ID: "sx", StoreID: "sterr", TeamMemberID: "tm", Tag: "9", Status: domain.SessionInProgress,
		EntryTime: now, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if err := db.Exec(`ALTER TABLE sessions RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}

	_, _, err := SessionsStats(context.Background(), db, "sterr")
	if err == nil {
		t.Fatalf("expected error from latest-updated select after column rename")
	}
}

func TestItemsAndBackOfHouseStats(t *testing.T) {
	db := newTestDB(t, &domain.Session{}, &domain.Item{}, &domain.BackOfHouseEntry{})

	t1 := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	if err := db.Create(&domain.Session{ID: "s1", StoreID: "st1", TeamMemberID: "tm", Tag: "1", Status: domain.SessionInProgress, EntryTime: t1}).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	for i, ts := range []time.Time{t1, t2} {
		it := &domain.Item{ID: fmt.Sprintf("i%d", i), SessionID: "s1", Seq: int64(i + 1), Barcode: "SKU1", Status: domain.ItemInRoom, ScannedInAt: ts, CreatedAt: ts, UpdatedAt: ts}
		if err := db.Create(it).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
	count, maxAt, err := ItemsStats(context.Background(), db, "s1")
	if err != nil || count != 2 || maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("ItemsStats = (%d, %v, %v)", count, maxAt, err)
	}

	count, maxAt, err = BackOfHouseStats(context.Background(), db, "st1")
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("BackOfHouseStats on empty queue = (%d, %v, %v)", count, maxAt, err)
	}
}
