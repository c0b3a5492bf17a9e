package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

func TestFindFirstUnresolvedByBarcode_FIFO(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "1", time.Now().UTC())

	// identical timestamps: seq decides
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	add := func(b string) *domain.Item {
		seq, err := NextItemSeq(ctx, db, "st1", s.ID, at)
		if err != nil {
			t.Fatalf("NextItemSeq: %v", err)
		}
		it, err := CreateItem(ctx, db, s.ID, b, seq, at)
		if err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
		return it
	}
	var items []*domain.Item
	for _, b := range []string{"B1", "B2", "B1", "B1"} {
		items = append(items, add(b))
	}

	var order []string
	for {
		it, err := FindFirstUnresolvedByBarcode(ctx, db, s.ID, "B1")
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		order = append(order, it.ID)
		if n, err := ResolveItem(ctx, db, s.ID, it.ID, domain.ItemRestocked, "tm1", at); err != nil || n != 1 {
			t.Fatalf("ResolveItem = %d, %v", n, err)
		}
	}
	want := []string{items[0].ID, items[2].ID, items[3].ID}
	if len(order) != len(want) {
		t.Fatalf("resolved %d items, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("FIFO order broken at %d: got %s want %s", i, order[i], want[i])
		}
	}

	left, err := ListUnresolvedItems(ctx, db, s.ID)
	if err != nil || len(left) != 1 || left[0].Barcode != "B2" {
		t.Fatalf("ListUnresolvedItems = %+v, %v", left, err)
	}
	n, _ := CountUnresolvedByBarcode(ctx, db, s.ID, "B1")
	if n != 0 {
		t.Fatalf("CountUnresolvedByBarcode = %d", n)
	}
	counts, err := CountItemsByStatus(ctx, db, s.ID)
	if err != nil || counts[domain.ItemRestocked] != 3 || counts[domain.ItemInRoom] != 1 {
		t.Fatalf("CountItemsByStatus = %v, %v", counts, err)
	}
}

func TestFindFirstUnresolvedByBarcode_OlderTimestampWins(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "2", time.Now().UTC())
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// higher seq but earlier scan time is still first
	late, _ := CreateItem(ctx, db, s.ID, "B1", 1, t1.Add(time.Minute))
	early, _ := CreateItem(ctx, db, s.ID, "B1", 2, t1)

	got, err := FindFirstUnresolvedByBarcode(ctx, db, s.ID, "B1")
	if err != nil || got.ID != early.ID {
		t.Fatalf("expected %s first, got %+v (%v); late=%s", early.ID, got, err, late.ID)
	}
}

func TestResolveItem_OnlyOnce(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "3", now)
	it, _ := CreateItem(ctx, db, s.ID, "X1", 1, now)

	if n, err := ResolveItem(ctx, db, s.ID, it.ID, domain.ItemPurchased, "tm1", now); err != nil || n != 1 {
		t.Fatalf("first resolve = %d, %v", n, err)
	}
	if n, err := ResolveItem(ctx, db, s.ID, it.ID, domain.ItemRestocked, "tm1", now); err != nil || n != 0 {
		t.Fatalf("second resolve should not match, got %d, %v", n, err)
	}
	got, _ := GetItem(ctx, db, s.ID, it.ID)
	if got.Status != domain.ItemPurchased || got.ResolvedAt == nil || got.ResolvedBy == nil || *got.ResolvedBy != "tm1" {
		t.Fatalf("unexpected item: %+v", got)
	}

	// resolved items cannot be deleted as accidental scans
	if err := DeleteInRoomItem(ctx, db, s.ID, it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting resolved item, got %v", err)
	}
}

func TestResolveItem_ConcurrentSingleWinner(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "4", now)
	it, _ := CreateItem(ctx, db, s.ID, "X1", 1, now)

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := ResolveItem(ctx, db, s.ID, it.ID, domain.ItemPurchased, "tm1", time.Now().UTC())
			if err != nil {
				t.Errorf("ResolveItem: %v", err)
				return
			}
			mu.Lock()
			wins += rows
			mu.Unlock()
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning resolve, got %d", wins)
	}
}

func TestAttachAndDetachBasketItems(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s, _ := CreateSession(ctx, db, "st1", "tm1", "5", now)
	it, _ := CreateItem(ctx, db, s.ID, "X1", 1, now)
	b, _ := CreateBasket(ctx, db, "st1", s.ID, 1, now)

	// only purchased items attach
	if n, _ := AttachItemToBasket(ctx, db, it.ID, b.ID); n != 0 {
		t.Fatalf("in_room item must not attach")
	}
	_, _ = ResolveItem(ctx, db, s.ID, it.ID, domain.ItemPurchased, "tm1", now)
	if n, err := AttachItemToBasket(ctx, db, it.ID, b.ID); err != nil || n != 1 {
		t.Fatalf("AttachItemToBasket = %d, %v", n, err)
	}
	items, _ := ListBasketItems(ctx, db, b.ID)
	if len(items) != 1 {
		t.Fatalf("ListBasketItems = %d", len(items))
	}
	if err := DetachBasketItems(ctx, db, b.ID); err != nil {
		t.Fatalf("DetachBasketItems: %v", err)
	}
	got, _ := GetItem(ctx, db, s.ID, it.ID)
	if got.BasketID != nil || got.Status != domain.ItemPurchased {
		t.Fatalf("detach must only clear basket_id: %+v", got)
	}
}
