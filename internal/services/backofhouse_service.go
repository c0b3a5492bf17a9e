// Package services – BackOfHouseService
//
// The back-of-house queue holds restocked garments until a team member
// returns them to the floor. Urgency is never stored: it is derived from
// the wait time at read time (domain.UrgencyOf), so list filters by urgency
// translate into received_at bands.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
	"github.com/tbourn/go-changingroom-backend/internal/utils"
)

const backOfHouseTracer = "services/BackOfHouseService"

// BackOfHouseRepo is the persistence contract required by
// BackOfHouseService.
type BackOfHouseRepo interface {
	// CreateBackOfHouse enqueues a barcode as awaiting_return.
	CreateBackOfHouse(ctx context.Context, db *gorm.DB, storeID, sessionID, barcode, teamMemberID string, now time.Time) (*domain.BackOfHouseEntry, error)

	// GetBackOfHouse fetches one entry of a store.
	GetBackOfHouse(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.BackOfHouseEntry, error)

	// MarkBackOfHouseReturned flips awaiting_return to returned and reports
	// how many rows changed.
	MarkBackOfHouseReturned(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error)

	// ListBackOfHouse returns a page of entries, oldest first.
	ListBackOfHouse(ctx context.Context, db *gorm.DB, f repo.BackOfHouseFilter, offset, limit int) ([]domain.BackOfHouseEntry, error)

	// CountBackOfHouse counts entries matching the filter.
	CountBackOfHouse(ctx context.Context, db *gorm.DB, f repo.BackOfHouseFilter) (int64, error)
}

// BackOfHouseFilter selects queue entries for List. MinWait keeps entries
// that have waited at least that long; Urgency keeps one urgency band.
// Both are evaluated against the service clock.
type BackOfHouseFilter struct {
	Status    domain.BackOfHouseStatus
	SessionID string
	MinWait   time.Duration
	Urgency   domain.Urgency
}

// BackOfHouseView is an entry with its urgency and wait at read time.
type BackOfHouseView struct {
	domain.BackOfHouseEntry
	Urgency     domain.Urgency `json:"urgency"`
	WaitMinutes int            `json:"wait_minutes"`
}

// BackOfHouseService manages the restock queue.
type BackOfHouseService struct {
	DB   *gorm.DB
	Repo BackOfHouseRepo
	Scan scan.Policy
	Now  Clock
}

// NewBackOfHouseService constructs a BackOfHouseService.
func NewBackOfHouseService(db *gorm.DB, r BackOfHouseRepo) *BackOfHouseService {
	return &BackOfHouseService{DB: db, Repo: r}
}

// Enqueue records a restocked barcode as awaiting_return.
func (s *BackOfHouseService) Enqueue(ctx context.Context, actor domain.Actor, sessionID, rawBarcode string) (e *domain.BackOfHouseEntry, err error) {
	ctx, span := startSpan(ctx, backOfHouseTracer, "Enqueue", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	barcode, err := policyBarcode(s.Scan, rawBarcode)
	if err != nil {
		return nil, err
	}
	return s.Repo.CreateBackOfHouse(ctx, s.DB, actor.StoreID, sessionID, barcode, actor.ID, s.Now.now())
}

// MarkReturned moves an awaiting entry to returned. A second call fails
// with *StateError.
func (s *BackOfHouseService) MarkReturned(ctx context.Context, actor domain.Actor, id string) (e *domain.BackOfHouseEntry, err error) {
	ctx, span := startSpan(ctx, backOfHouseTracer, "MarkReturned", actor, attribute.String("entry.id", id))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	n, err := s.Repo.MarkBackOfHouseReturned(ctx, s.DB, actor.StoreID, id, s.Now.now())
	if err != nil {
		return nil, err
	}
	e, err = s.Repo.GetBackOfHouse(ctx, s.DB, actor.StoreID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntityBackOfHouse, Key: id}
		}
		return nil, err
	}
	if n == 0 {
		return nil, &StateError{Entity: EntityBackOfHouse, ID: id, From: string(e.Status), Attempted: "mark returned"}
	}
	backOfHouseReturned.Inc()
	log.Ctx(ctx).Info().Str("entry_id", id).Str("barcode", e.Barcode).Str("actor_id", actor.ID).Msg("item returned to floor")
	return e, nil
}

// UrgencyOf classifies an entry's wait at the service clock.
func (s *BackOfHouseService) UrgencyOf(e domain.BackOfHouseEntry) domain.Urgency {
	return e.UrgencyAt(s.Now.now())
}

// List returns a page of the store's queue, oldest first, and the total
// matching count.
func (s *BackOfHouseService) List(ctx context.Context, actor domain.Actor, f BackOfHouseFilter, page, pageSize int) ([]BackOfHouseView, int64, error) {
	if err := checkActor(actor); err != nil {
		return nil, 0, err
	}
	pg := utils.NewPage(page, pageSize)
	now := s.Now.now()
	rf, err := s.repoFilter(actor.StoreID, f, now)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.Repo.CountBackOfHouse(ctx, s.DB, rf)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []BackOfHouseView{}, 0, nil
	}
	rows, err := s.Repo.ListBackOfHouse(ctx, s.DB, rf, pg.Offset(), pg.Size)
	if err != nil {
		return nil, 0, err
	}
	out := make([]BackOfHouseView, 0, len(rows))
	for _, e := range rows {
		out = append(out, BackOfHouseView{
			BackOfHouseEntry: e,
			Urgency:          e.UrgencyAt(now),
			WaitMinutes:      int(now.Sub(e.ReceivedAt) / time.Minute),
		})
	}
	return out, total, nil
}

// CountAwaiting returns how many entries of the store await return.
func (s *BackOfHouseService) CountAwaiting(ctx context.Context, actor domain.Actor) (int64, error) {
	if err := checkActor(actor); err != nil {
		return 0, err
	}
	return s.Repo.CountBackOfHouse(ctx, s.DB, repo.BackOfHouseFilter{
		StoreID: actor.StoreID,
		Status:  domain.BackOfHouseAwaiting,
	})
}

// repoFilter turns wait-based criteria into received_at bounds.
func (s *BackOfHouseService) repoFilter(storeID string, f BackOfHouseFilter, now time.Time) (repo.BackOfHouseFilter, error) {
	rf := repo.BackOfHouseFilter{StoreID: storeID, Status: f.Status, SessionID: f.SessionID}

	before := func(d time.Duration) {
		t := now.Add(-d)
		if rf.ReceivedBefore == nil || t.Before(*rf.ReceivedBefore) {
			rf.ReceivedBefore = &t
		}
	}
	if f.MinWait > 0 {
		before(f.MinWait)
	}
	switch f.Urgency {
	case "":
	case domain.UrgencyNormal:
		after := now.Add(-domain.UrgencyWarningAfter)
		rf.ReceivedAfter = &after
	case domain.UrgencyWarning:
		before(domain.UrgencyWarningAfter)
		after := now.Add(-domain.UrgencyCriticalAfter)
		rf.ReceivedAfter = &after
	case domain.UrgencyCritical:
		before(domain.UrgencyCriticalAfter)
	default:
		return rf, ErrInvalidUrgency
	}
	return rf, nil
}
