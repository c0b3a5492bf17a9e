// Package services – ShrinkageService
//
// The shrinkage log records garments that left a changing room without
// being purchased or restocked. Recovery is an independent, later action:
// it closes the log entry but never reopens the item or the session.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
	"github.com/tbourn/go-changingroom-backend/internal/utils"
)

const shrinkageTracer = "services/ShrinkageService"

// maxNotesLen caps free-text notes, in bytes.
const maxNotesLen = 2000

// ShrinkageRepo is the persistence contract required by ShrinkageService.
type ShrinkageRepo interface {
	CreateShrinkage(ctx context.Context, db *gorm.DB, storeID, sessionID, barcode, teamMemberID, notes string, now time.Time) (*domain.ShrinkageEntry, error)
	GetShrinkage(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.ShrinkageEntry, error)
	MarkShrinkageRecovered(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error)
	ListShrinkage(ctx context.Context, db *gorm.DB, f repo.ShrinkageFilter, offset, limit int) ([]domain.ShrinkageEntry, error)
	CountShrinkage(ctx context.Context, db *gorm.DB, f repo.ShrinkageFilter) (int64, error)
}

// ShrinkageFilter selects log entries. From is inclusive, To exclusive.
type ShrinkageFilter struct {
	Status  domain.ShrinkageStatus
	Barcode string
	From    *time.Time
	To      *time.Time
}

// ShrinkageService manages the loss-prevention log.
type ShrinkageService struct {
	DB   *gorm.DB
	Repo ShrinkageRepo
	Now  Clock
}

// NewShrinkageService constructs a ShrinkageService.
func NewShrinkageService(db *gorm.DB, r ShrinkageRepo) *ShrinkageService {
	return &ShrinkageService{DB: db, Repo: r}
}

// Record logs a lost barcode for a session.
func (s *ShrinkageService) Record(ctx context.Context, actor domain.Actor, sessionID, rawBarcode, notes string) (e *domain.ShrinkageEntry, err error) {
	ctx, span := startSpan(ctx, shrinkageTracer, "Record", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	barcode := scan.Normalize(rawBarcode)
	if barcode == "" {
		return nil, ErrEmptyBarcode
	}
	e, err = s.Repo.CreateShrinkage(ctx, s.DB, actor.StoreID, sessionID, barcode, actor.ID, clipNotes(notes), s.Now.now())
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Warn().Str("entry_id", e.ID).Str("session_id", sessionID).Str("barcode", barcode).Msg("item recorded as lost")
	return e, nil
}

// Recover marks a lost entry as recovered. A second call fails with
// *StateError.
func (s *ShrinkageService) Recover(ctx context.Context, actor domain.Actor, id string) (e *domain.ShrinkageEntry, err error) {
	ctx, span := startSpan(ctx, shrinkageTracer, "Recover", actor, attribute.String("entry.id", id))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	n, err := s.Repo.MarkShrinkageRecovered(ctx, s.DB, actor.StoreID, id, s.Now.now())
	if err != nil {
		return nil, err
	}
	e, err = s.Repo.GetShrinkage(ctx, s.DB, actor.StoreID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntityShrinkage, Key: id}
		}
		return nil, err
	}
	if n == 0 {
		return nil, &StateError{Entity: EntityShrinkage, ID: id, From: string(e.Status), Attempted: "recover"}
	}
	shrinkageRecovered.Inc()
	log.Ctx(ctx).Info().Str("entry_id", id).Str("barcode", e.Barcode).Str("actor_id", actor.ID).Msg("lost item recovered")
	return e, nil
}

// List returns a page of the store's log, newest loss first, and the total.
func (s *ShrinkageService) List(ctx context.Context, actor domain.Actor, f ShrinkageFilter, page, pageSize int) ([]domain.ShrinkageEntry, int64, error) {
	if err := checkActor(actor); err != nil {
		return nil, 0, err
	}
	pg := utils.NewPage(page, pageSize)
	rf := s.repoFilter(actor.StoreID, f)
	total, err := s.Repo.CountShrinkage(ctx, s.DB, rf)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ShrinkageEntry{}, 0, nil
	}
	out, err := s.Repo.ListShrinkage(ctx, s.DB, rf, pg.Offset(), pg.Size)
	return out, total, err
}

// FindLostByBarcode returns the most recent still-lost entry for a barcode
// in the store, or (nil, nil).
func (s *ShrinkageService) FindLostByBarcode(ctx context.Context, actor domain.Actor, rawBarcode string) (*domain.ShrinkageEntry, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	barcode := scan.Normalize(rawBarcode)
	if barcode == "" {
		return nil, ErrEmptyBarcode
	}
	out, err := s.Repo.ListShrinkage(ctx, s.DB, repo.ShrinkageFilter{
		StoreID: actor.StoreID,
		Status:  domain.ShrinkageLost,
		Barcode: barcode,
	}, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// CountLost counts still-lost entries in [from, to).
func (s *ShrinkageService) CountLost(ctx context.Context, actor domain.Actor, from, to *time.Time) (int64, error) {
	if err := checkActor(actor); err != nil {
		return 0, err
	}
	return s.Repo.CountShrinkage(ctx, s.DB, s.repoFilter(actor.StoreID, ShrinkageFilter{
		Status: domain.ShrinkageLost,
		From:   from,
		To:     to,
	}))
}

func (s *ShrinkageService) repoFilter(storeID string, f ShrinkageFilter) repo.ShrinkageFilter {
	return repo.ShrinkageFilter{
		StoreID: storeID,
		Status:  f.Status,
		Barcode: scan.Normalize(f.Barcode),
		From:    f.From,
		To:      f.To,
	}
}

func clipNotes(notes string) string {
	notes = strings.TrimSpace(notes)
	if len(notes) <= maxNotesLen {
		return notes
	}
	// Cut on a rune boundary.
	cut := maxNotesLen
	for cut > 0 && !utf8.RuneStart(notes[cut]) {
		cut--
	}
	return notes[:cut]
}
