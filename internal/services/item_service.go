// Package services – ItemService
//
// The item ledger: one row per physical garment scanned into a session.
// Resolution is a single conditional UPDATE guarded by status = 'in_room';
// of two racing resolutions exactly one wins and the other receives a
// *StateError. Lookups by barcode are FIFO so duplicate SKUs resolve
// oldest-first.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
)

const itemTracer = "services/ItemService"

// ItemService exposes the item ledger.
type ItemService struct {
	DB   *gorm.DB
	Scan scan.Policy
	Now  Clock
}

// NewItemService constructs an ItemService.
func NewItemService(db *gorm.DB) *ItemService {
	return &ItemService{DB: db}
}

// Resolve moves an in_room item of an exiting session to outcome and adds
// it to the session counters. It fails with *StateError when the item is
// already resolved or the session is not exiting. Downstream records
// (basket, back-of-house, shrinkage) are the orchestrator's job; see
// ReconcileService.Resolve.
func (s *ItemService) Resolve(ctx context.Context, actor domain.Actor, sessionID, itemID string, outcome domain.ItemStatus) (it *domain.Item, err error) {
	ctx, span := startSpan(ctx, itemTracer, "Resolve", actor,
		attribute.String("session.id", sessionID),
		attribute.String("item.id", itemID),
		attribute.String("outcome", string(outcome)),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if !outcome.IsResolved() {
		return nil, ErrInvalidOutcome
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		it, _, err = resolveItem(ctx, tx, actor, sessionID, itemID, outcome, s.Now.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	itemsResolved.WithLabelValues(string(outcome)).Inc()
	return it, nil
}

// resolveItem is the ledger write shared by every resolution path. The
// guarded item UPDATE runs first so it takes the write lock; the session
// is then checked and its live counters bumped. It returns the resolved
// item and its session as of after the write.
func resolveItem(ctx context.Context, tx *gorm.DB, actor domain.Actor, sessionID, itemID string, outcome domain.ItemStatus, now time.Time) (*domain.Item, *domain.Session, error) {
	n, err := repo.ResolveItem(ctx, tx, sessionID, itemID, outcome, actor.ID, now)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		err := explainItem(ctx, tx, sessionID, itemID, "resolve as "+string(outcome))
		if errors.Is(err, ErrState) {
			resolveConflicts.Inc()
		}
		return nil, nil, err
	}

	sess, err := repo.GetSession(ctx, tx, actor.StoreID, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, &NotFoundError{Entity: EntitySession, Key: sessionID}
		}
		return nil, nil, err
	}
	if sess.Status != domain.SessionExiting {
		return nil, nil, &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: "resolve items", Reason: "exit has not started"}
	}
	if err := repo.IncrementOutcome(ctx, tx, sessionID, outcome, now); err != nil {
		return nil, nil, err
	}

	it, err := repo.GetItem(ctx, tx, sessionID, itemID)
	if err != nil {
		return nil, nil, err
	}
	return it, sess, nil
}

// FindUnresolvedByBarcode returns the earliest-scanned in_room item with
// the barcode, or (nil, nil) when none is left.
func (s *ItemService) FindUnresolvedByBarcode(ctx context.Context, sessionID, rawBarcode string) (*domain.Item, error) {
	barcode, err := policyBarcode(s.Scan, rawBarcode)
	if err != nil {
		return nil, err
	}
	it, err := repo.FindFirstUnresolvedByBarcode(ctx, s.DB, sessionID, barcode)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return it, nil
}

// CountUnresolvedByBarcode counts in_room items with the barcode.
func (s *ItemService) CountUnresolvedByBarcode(ctx context.Context, sessionID, barcode string) (int64, error) {
	return repo.CountUnresolvedByBarcode(ctx, s.DB, sessionID, scan.Normalize(barcode))
}

// ListUnresolved returns a session's in_room items, oldest scan first.
func (s *ItemService) ListUnresolved(ctx context.Context, sessionID string) ([]domain.Item, error) {
	return repo.ListUnresolvedItems(ctx, s.DB, sessionID)
}

// List returns every item of a session, oldest scan first.
func (s *ItemService) List(ctx context.Context, sessionID string) ([]domain.Item, error) {
	return repo.ListItems(ctx, s.DB, sessionID)
}

// CountByStatus groups a session's items by status.
func (s *ItemService) CountByStatus(ctx context.Context, sessionID string) (map[domain.ItemStatus]int, error) {
	return repo.CountItemsByStatus(ctx, s.DB, sessionID)
}
