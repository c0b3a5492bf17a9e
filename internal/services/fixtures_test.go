package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
)

var (
	staff      = domain.Actor{ID: "tm-1", StoreID: "store-1", Role: "staff"}
	staff2     = domain.Actor{ID: "tm-2", StoreID: "store-1", Role: "staff"}
	otherStore = domain.Actor{ID: "tm-9", StoreID: "store-9", Role: "staff"}
)

// newServiceDB returns a migrated file-backed SQLite database. Service
// tests open transactions, so they use the WAL/busy-timeout setup of
// repo.OpenSQLite rather than a shared-cache memory database.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// tickClock returns a clock that advances by step on every reading, so
// consecutive scans get strictly increasing timestamps.
func tickClock(start time.Time, step time.Duration) Clock {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

// fixedClock always returns t.
func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

// room bundles the services wired the way the HTTP router wires them.
type room struct {
	db        *gorm.DB
	sessions  *SessionService
	items     *ItemService
	baskets   *BasketService
	boh       *BackOfHouseService
	shrinkage *ShrinkageService
	reconcile *ReconcileService
}

func newRoom(t *testing.T, clock Clock) *room {
	t.Helper()
	db := newServiceDB(t)
	sessions := NewSessionService(db)
	sessions.Now = clock
	items := NewItemService(db)
	items.Now = clock
	baskets := NewBasketService(db)
	baskets.Now = clock
	boh := NewBackOfHouseService(db, repo.BackOfHouseStore{})
	boh.Now = clock
	shr := NewShrinkageService(db, repo.ShrinkageStore{})
	shr.Now = clock
	return &room{
		db:        db,
		sessions:  sessions,
		items:     items,
		baskets:   baskets,
		boh:       boh,
		shrinkage: shr,
		reconcile: NewReconcileService(db, sessions),
	}
}

// openWith opens a session for tag and records the barcodes in order.
func (r *room) openWith(t *testing.T, actor domain.Actor, tag string, barcodes ...string) (*domain.Session, []*domain.Item) {
	t.Helper()
	ctx := context.Background()
	sess, err := r.sessions.Open(ctx, actor, tag)
	if err != nil {
		t.Fatalf("Open(%q): %v", tag, err)
	}
	items := make([]*domain.Item, 0, len(barcodes))
	for _, b := range barcodes {
		it, err := r.sessions.RecordEntryItem(ctx, actor, sess.ID, b)
		if err != nil {
			t.Fatalf("RecordEntryItem(%q): %v", b, err)
		}
		items = append(items, it)
	}
	return sess, items
}
