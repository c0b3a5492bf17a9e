package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// newRepoDB returns a migrated in-memory database unique to the test.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newFileDB returns a migrated file-backed database opened through
// OpenSQLite, suitable for tests with concurrent writers.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "concurrent.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateSession_OpenTagIsUnique(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s1, err := CreateSession(ctx, db, "st1", "tm1", "042", now)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s1.Status != domain.SessionInProgress || s1.TotalItemsIn != 0 || !s1.EntryTime.Equal(now) {
		t.Fatalf("unexpected session: %+v", s1)
	}

	if _, err := CreateSession(ctx, db, "st1", "tm2", "042", now); err == nil {
		t.Fatalf("expected unique violation for second open session on same tag")
	}

	// Same tag in another store is a different physical tag.
	if _, err := CreateSession(ctx, db, "st2", "tm1", "042", now); err != nil {
		t.Fatalf("other store should accept tag: %v", err)
	}

	// Once the first session is closed the tag is free again.
	if err := db.Model(&domain.Session{}).Where("id = ?", s1.ID).Update("status", domain.SessionComplete).Error; err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := CreateSession(ctx, db, "st1", "tm1", "042", now); err != nil {
		t.Fatalf("tag should be reusable after close: %v", err)
	}
}

func TestCreateSession_ConcurrentSameTag(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := CreateSession(ctx, db, "st1", fmt.Sprintf("tm%d", i), "777", time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errs++
			}
		}(i)
	}
	wg.Wait()
	if oks != 1 || errs != n-1 {
		t.Fatalf("expected exactly one open session, got ok=%d err=%d", oks, errs)
	}
	total, err := CountSessions(ctx, db, SessionFilter{StoreID: "st1", Tag: "777"})
	if err != nil || total != 1 {
		t.Fatalf("CountSessions = %d, %v", total, err)
	}
}

func TestNextItemSeq_And_DecrementItemsIn(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "1", now)

	for want := int64(1); want <= 3; want++ {
		seq, err := NextItemSeq(ctx, db, "st1", s.ID, now)
		if err != nil || seq != want {
			t.Fatalf("NextItemSeq = %d, %v; want %d", seq, err, want)
		}
	}
	if err := DecrementItemsIn(ctx, db, "st1", s.ID, now); err != nil {
		t.Fatalf("DecrementItemsIn: %v", err)
	}
	got, _ := GetSession(ctx, db, "st1", s.ID)
	if got.TotalItemsIn != 2 || got.ItemSeq != 3 {
		t.Fatalf("counters: in=%d seq=%d", got.TotalItemsIn, got.ItemSeq)
	}

	// Wrong store never matches.
	if _, err := NextItemSeq(ctx, db, "other", s.ID, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other store, got %v", err)
	}

	// Not in_progress any more.
	if n, err := MarkSessionExiting(ctx, db, "st1", s.ID, now); err != nil || n != 1 {
		t.Fatalf("MarkSessionExiting = %d, %v", n, err)
	}
	if _, err := NextItemSeq(ctx, db, "st1", s.ID, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound once exiting, got %v", err)
	}
	if err := DecrementItemsIn(ctx, db, "st1", s.ID, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound once exiting, got %v", err)
	}
	if n, _ := MarkSessionExiting(ctx, db, "st1", s.ID, now); n != 0 {
		t.Fatalf("second MarkSessionExiting should not match")
	}
}

func TestFinalizeSession_Guards(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "5", now)
	seq, _ := NextItemSeq(ctx, db, "st1", s.ID, now)
	it, err := CreateItem(ctx, db, s.ID, "SKU1", seq, now)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	counts := domain.SessionCounts{TotalItemsOut: 1, ItemsPurchased: 1}

	// still in_progress
	if n, _ := FinalizeSession(ctx, db, "st1", s.ID, domain.SessionComplete, counts, now); n != 0 {
		t.Fatalf("finalize must require exiting")
	}
	_, _ = MarkSessionExiting(ctx, db, "st1", s.ID, now)

	// item still in_room
	if n, _ := FinalizeSession(ctx, db, "st1", s.ID, domain.SessionComplete, counts, now); n != 0 {
		t.Fatalf("finalize must require no in_room items")
	}
	if n, err := ResolveItem(ctx, db, s.ID, it.ID, domain.ItemPurchased, "tm1", now); err != nil || n != 1 {
		t.Fatalf("ResolveItem = %d, %v", n, err)
	}

	// counters that do not add up
	bad := domain.SessionCounts{TotalItemsOut: 2, ItemsPurchased: 2}
	if n, _ := FinalizeSession(ctx, db, "st1", s.ID, domain.SessionComplete, bad, now); n != 0 {
		t.Fatalf("finalize must reject inconsistent counters")
	}

	if n, err := FinalizeSession(ctx, db, "st1", s.ID, domain.SessionComplete, counts, now); err != nil || n != 1 {
		t.Fatalf("FinalizeSession = %d, %v", n, err)
	}
	got, _ := GetSession(ctx, db, "st1", s.ID)
	if got.Status != domain.SessionComplete || got.ItemsPurchased != 1 || got.ExitCompleteTime == nil {
		t.Fatalf("unexpected finalized session: %+v", got)
	}
	if _, err := FindOpenSessionByTag(ctx, db, "st1", "5"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closed session must not be found as open, got %v", err)
	}
}

func TestListSessions_Filters(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := CreateSession(ctx, db, "st1", "tm1", fmt.Sprintf("T%03d", i), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	f := SessionFilter{StoreID: "st1", Statuses: []domain.SessionStatus{domain.SessionInProgress}, From: &from, To: &to}

	total, err := CountSessions(ctx, db, f)
	if err != nil || total != 2 {
		t.Fatalf("CountSessions = %d, %v", total, err)
	}
	out, err := ListSessions(ctx, db, f, 0, 10)
	if err != nil || len(out) != 2 {
		t.Fatalf("ListSessions = %d, %v", len(out), err)
	}
	if out[0].Tag != "T002" || out[1].Tag != "T001" {
		t.Fatalf("expected newest first, got %s, %s", out[0].Tag, out[1].Tag)
	}

	stale, err := ListOpenSessionsBefore(ctx, db, base.Add(90*time.Minute), 0)
	if err != nil || len(stale) != 2 || stale[0].Tag != "T000" {
		t.Fatalf("ListOpenSessionsBefore = %+v, %v", stale, err)
	}
}

func TestDeleteSession_Cascades(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "9", now)
	seq, _ := NextItemSeq(ctx, db, "st1", s.ID, now)
	if _, err := CreateItem(ctx, db, s.ID, "SKU1", seq, now); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if _, err := CreateBasket(ctx, db, "st1", s.ID, 1, now); err != nil {
		t.Fatalf("CreateBasket: %v", err)
	}

	if err := DeleteSession(ctx, db, "st1", s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	items, _ := ListItems(ctx, db, s.ID)
	if len(items) != 0 {
		t.Fatalf("items should cascade, got %d", len(items))
	}
	if _, err := GetBasketBySession(ctx, db, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("basket should cascade, got %v", err)
	}
	if err := DeleteSession(ctx, db, "st1", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}
