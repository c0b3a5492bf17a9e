package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
)

// ----- Fake repo -----

type fakeBOHRepo struct {
	createStore, createSession, createBarcode, createTM string

	listFilter  repo.BackOfHouseFilter
	countFilter repo.BackOfHouseFilter
	listOffset  int
	listLimit   int
	listItems   []domain.BackOfHouseEntry
	countTotal  int64

	markRows int64
	getEntry *domain.BackOfHouseEntry
	getErr   error
}

func (r *fakeBOHRepo) CreateBackOfHouse(_ context.Context, _ *gorm.DB, storeID, sessionID, barcode, tm string, now time.Time) (*domain.BackOfHouseEntry, error) {
	r.createStore, r.createSession, r.createBarcode, r.createTM = storeID, sessionID, barcode, tm
	return &domain.BackOfHouseEntry{ID: "e1", StoreID: storeID, SessionID: sessionID, Barcode: barcode, Status: domain.BackOfHouseAwaiting, ReceivedAt: now}, nil
}

func (r *fakeBOHRepo) GetBackOfHouse(context.Context, *gorm.DB, string, string) (*domain.BackOfHouseEntry, error) {
	return r.getEntry, r.getErr
}

func (r *fakeBOHRepo) MarkBackOfHouseReturned(context.Context, *gorm.DB, string, string, time.Time) (int64, error) {
	return r.markRows, nil
}

func (r *fakeBOHRepo) ListBackOfHouse(_ context.Context, _ *gorm.DB, f repo.BackOfHouseFilter, offset, limit int) ([]domain.BackOfHouseEntry, error) {
	r.listFilter, r.listOffset, r.listLimit = f, offset, limit
	return r.listItems, nil
}

func (r *fakeBOHRepo) CountBackOfHouse(_ context.Context, _ *gorm.DB, f repo.BackOfHouseFilter) (int64, error) {
	r.countFilter = f
	return r.countTotal, nil
}

// ----- Tests -----

func TestBackOfHouseService_EnqueueNormalizes(t *testing.T) {
	fr := &fakeBOHRepo{}
	svc := NewBackOfHouseService(nil, fr)
	svc.Now = fixedClock(t0)

	e, err := svc.Enqueue(context.Background(), staff, "s1", "  sku1 ")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if fr.createBarcode != "SKU1" || fr.createStore != staff.StoreID || fr.createTM != staff.ID || fr.createSession != "s1" {
		t.Fatalf("repo got %+v", fr)
	}
	if !e.ReceivedAt.Equal(t0) {
		t.Fatalf("received_at = %v", e.ReceivedAt)
	}
	if _, err := svc.Enqueue(context.Background(), staff, "s1", " "); !errors.Is(err, ErrEmptyBarcode) {
		t.Fatalf("blank barcode: got %v", err)
	}
}

func TestBackOfHouseService_UrgencyFilterBands(t *testing.T) {
	now := t0
	cases := []struct {
		name       string
		f          BackOfHouseFilter
		wantBefore *time.Time
		wantAfter  *time.Time
		wantErr    error
	}{
		{name: "none", f: BackOfHouseFilter{}},
		{name: "normal", f: BackOfHouseFilter{Urgency: domain.UrgencyNormal}, wantAfter: ptr(now.Add(-30 * time.Minute))},
		{name: "warning", f: BackOfHouseFilter{Urgency: domain.UrgencyWarning}, wantBefore: ptr(now.Add(-30 * time.Minute)), wantAfter: ptr(now.Add(-60 * time.Minute))},
		{name: "critical", f: BackOfHouseFilter{Urgency: domain.UrgencyCritical}, wantBefore: ptr(now.Add(-60 * time.Minute))},
		{name: "min wait", f: BackOfHouseFilter{MinWait: 15 * time.Minute}, wantBefore: ptr(now.Add(-15 * time.Minute))},
		{name: "min wait tighter than band", f: BackOfHouseFilter{MinWait: 45 * time.Minute, Urgency: domain.UrgencyWarning}, wantBefore: ptr(now.Add(-45 * time.Minute)), wantAfter: ptr(now.Add(-60 * time.Minute))},
		{name: "bad urgency", f: BackOfHouseFilter{Urgency: "urgent"}, wantErr: ErrInvalidUrgency},
	}
	svc := NewBackOfHouseService(nil, &fakeBOHRepo{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rf, err := svc.repoFilter("store-1", tc.f, now)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if !sameTime(rf.ReceivedBefore, tc.wantBefore) || !sameTime(rf.ReceivedAfter, tc.wantAfter) {
				t.Fatalf("bounds before=%v after=%v, want before=%v after=%v", rf.ReceivedBefore, rf.ReceivedAfter, tc.wantBefore, tc.wantAfter)
			}
		})
	}
}

func TestBackOfHouseService_ListAnnotatesUrgency(t *testing.T) {
	now := t0
	fr := &fakeBOHRepo{
		countTotal: 3,
		listItems: []domain.BackOfHouseEntry{
			{ID: "a", ReceivedAt: now.Add(-75 * time.Minute)},
			{ID: "b", ReceivedAt: now.Add(-30*time.Minute - 20*time.Second)},
			{ID: "c", ReceivedAt: now.Add(-29*time.Minute - 59*time.Second)},
		},
	}
	svc := NewBackOfHouseService(nil, fr)
	svc.Now = fixedClock(now)

	out, total, err := svc.List(context.Background(), staff, BackOfHouseFilter{Status: domain.BackOfHouseAwaiting}, 2, 3)
	if err != nil || total != 3 {
		t.Fatalf("List = %d, %v", total, err)
	}
	want := []domain.Urgency{domain.UrgencyCritical, domain.UrgencyWarning, domain.UrgencyNormal}
	for i, v := range out {
		if v.Urgency != want[i] {
			t.Fatalf("entry %s urgency = %s, want %s", v.ID, v.Urgency, want[i])
		}
	}
	if out[0].WaitMinutes != 75 {
		t.Fatalf("wait minutes = %d", out[0].WaitMinutes)
	}
	if fr.listOffset != 3 || fr.listLimit != 3 || fr.listFilter.StoreID != staff.StoreID || fr.listFilter.Status != domain.BackOfHouseAwaiting {
		t.Fatalf("repo called with offset=%d limit=%d filter=%+v", fr.listOffset, fr.listLimit, fr.listFilter)
	}
}

func TestBackOfHouseService_MarkReturned(t *testing.T) {
	r := newRoom(t, fixedClock(t0))
	ctx := context.Background()

	e, err := r.boh.Enqueue(ctx, staff, "s1", "SKU1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n, _ := r.boh.CountAwaiting(ctx, staff); n != 1 {
		t.Fatalf("awaiting = %d", n)
	}
	done, err := r.boh.MarkReturned(ctx, staff, e.ID)
	if err != nil || done.Status != domain.BackOfHouseReturned || done.ReturnedAt == nil {
		t.Fatalf("MarkReturned = %+v, %v", done, err)
	}
	var se *StateError
	if _, err := r.boh.MarkReturned(ctx, staff, e.ID); !errors.As(err, &se) || se.From != string(domain.BackOfHouseReturned) {
		t.Fatalf("second MarkReturned: got %v", err)
	}
	if _, err := r.boh.MarkReturned(ctx, otherStore, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-store MarkReturned: got %v", err)
	}
	if n, _ := r.boh.CountAwaiting(ctx, staff); n != 0 {
		t.Fatalf("awaiting after return = %d", n)
	}
}

func TestShrinkageService_RecordRecover(t *testing.T) {
	r := newRoom(t, fixedClock(t0))
	ctx := context.Background()

	e, err := r.shrinkage.Record(ctx, staff, "s1", "sku1", "  torn tag  ")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.Status != domain.ShrinkageLost || e.Barcode != "SKU1" || e.Notes != "torn tag" {
		t.Fatalf("unexpected entry: %+v", e)
	}

	found, err := r.shrinkage.FindLostByBarcode(ctx, staff, "SKU1")
	if err != nil || found == nil || found.ID != e.ID {
		t.Fatalf("FindLostByBarcode = %+v, %v", found, err)
	}
	if n, _ := r.shrinkage.CountLost(ctx, staff, nil, nil); n != 1 {
		t.Fatalf("CountLost = %d", n)
	}

	rec, err := r.shrinkage.Recover(ctx, staff, e.ID)
	if err != nil || rec.Status != domain.ShrinkageRecovered || rec.RecoveredAt == nil {
		t.Fatalf("Recover = %+v, %v", rec, err)
	}
	if _, err := r.shrinkage.Recover(ctx, staff, e.ID); !errors.Is(err, ErrState) {
		t.Fatalf("second Recover: got %v", err)
	}
	if found, _ := r.shrinkage.FindLostByBarcode(ctx, staff, "SKU1"); found != nil {
		t.Fatalf("recovered entry is no longer lost")
	}

	list, total, err := r.shrinkage.List(ctx, staff, ShrinkageFilter{Status: domain.ShrinkageRecovered}, 1, 10)
	if err != nil || total != 1 || list[0].ID != e.ID {
		t.Fatalf("List recovered = %+v, %d, %v", list, total, err)
	}
	from := t0.Add(time.Hour)
	if _, total, _ := r.shrinkage.List(ctx, staff, ShrinkageFilter{From: &from}, 1, 10); total != 0 {
		t.Fatalf("date filter ignored, total=%d", total)
	}
}

func TestShrinkageService_RecoverDoesNotReopenItem(t *testing.T) {
	r := newRoom(t, tickClock(t0, time.Second))
	ctx := context.Background()
	sess, items := r.openWith(t, staff, "042", "SKU1")
	if _, err := r.reconcile.StartExit(ctx, staff, "042"); err != nil {
		t.Fatalf("StartExit: %v", err)
	}
	if _, err := r.reconcile.Finish(ctx, staff, sess.ID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	res, err := r.reconcile.MarkLost(ctx, staff, sess.ID, items[0].ID, "")
	if err != nil {
		t.Fatalf("MarkLost: %v", err)
	}
	if _, err := r.shrinkage.Recover(ctx, staff, res.Shrinkage.ID); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	it, _ := repo.GetItem(ctx, r.db, sess.ID, items[0].ID)
	got, _ := r.sessions.Get(ctx, staff, sess.ID)
	if it.Status != domain.ItemLost || got.Status != domain.SessionFlagged || got.ItemsLost != 1 {
		t.Fatalf("recovery changed the ledger: item=%s session=%s lost=%d", it.Status, got.Status, got.ItemsLost)
	}
}

func TestClipNotes(t *testing.T) {
	long := make([]byte, maxNotesLen+10)
	for i := range long {
		long[i] = 'a'
	}
	// A multi-byte rune straddling the limit must not be split.
	s := string(long[:maxNotesLen-1]) + "é" + "tail"
	got := clipNotes(s)
	if len(got) != maxNotesLen-1 {
		t.Fatalf("len = %d, want %d", len(got), maxNotesLen-1)
	}
	if clipNotes("  short ") != "short" {
		t.Fatalf("notes must be trimmed")
	}
}

func TestJanitor_Sweep(t *testing.T) {
	clock := t0
	r := newRoom(t, func() time.Time { return clock })
	ctx := context.Background()

	old, _ := r.openWith(t, staff, "001")
	b, _ := r.baskets.GetOrCreate(ctx, staff, old.ID)
	if _, err := r.baskets.SetDisposition(ctx, staff, b.ID, domain.BasketTransferred); err != nil {
		t.Fatalf("SetDisposition: %v", err)
	}
	expired := domain.Idempotency{ID: "idem-1", ActorID: staff.ID, SessionID: old.ID, Key: "k1", Status: 201, CreatedAt: t0, ExpiresAt: t0.Add(time.Minute)}
	if err := r.db.Create(&expired).Error; err != nil {
		t.Fatalf("create idempotency record: %v", err)
	}

	clock = t0.Add(5 * time.Hour)
	j := &Janitor{
		DB:          r.db,
		Baskets:     r.baskets,
		Now:         func() time.Time { return clock },
		BasketGrace: time.Hour,
		StaleAfter:  4 * time.Hour,
	}
	rep := j.Sweep(ctx)
	if rep.BasketsPurged != 1 || rep.StaleSessionsFound != 1 || rep.IdempotencyPurged != 1 {
		t.Fatalf("unexpected sweep report: %+v", rep)
	}
}

func ptr(t time.Time) *time.Time { return &t }

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
