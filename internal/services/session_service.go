// Package services – SessionService
//
// This file implements the session ledger: opening a tag-identified visit,
// recording and undoing entry scans, starting the exit, and closing the
// session with its final counters. Every guard is enforced by the database
// (partial unique index, conditional UPDATEs) so concurrent devices cannot
// break the ledger; the service only translates "no row matched" into a
// typed error by re-reading the current state.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
	"github.com/tbourn/go-changingroom-backend/internal/utils"
)

const sessionTracer = "services/SessionService"

// SessionFilter selects sessions for List.
type SessionFilter = repo.SessionFilter

// SessionService owns the lifecycle of changing-room sessions.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache projects open sessions by tag. Nil disables caching.
	Cache SessionCache
	// Scan normalizes (and optionally validates) tags and barcodes.
	Scan scan.Policy
	// Now is the clock; nil means UTC wall time.
	Now Clock
}

// NewSessionService constructs a SessionService without caching.
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{DB: db, Cache: NopSessionCache{}}
}

func (s *SessionService) cache() SessionCache {
	if s.Cache == nil {
		return NopSessionCache{}
	}
	return s.Cache
}

func (s *SessionService) normalizeTag(raw string) (string, error) {
	tag, err := s.Scan.Tag(raw)
	switch {
	case errors.Is(err, scan.ErrEmpty):
		return "", ErrEmptyTag
	case err != nil:
		return "", fmt.Errorf("tag %q: %w", raw, err)
	}
	return tag, nil
}

func (s *SessionService) normalizeBarcode(raw string) (string, error) {
	return policyBarcode(s.Scan, raw)
}

// Open starts a session for tag. It fails with *ConflictError when the tag
// already belongs to an in_progress or exiting session; the check is the
// unique index hit by the INSERT itself, not a prior read.
func (s *SessionService) Open(ctx context.Context, actor domain.Actor, rawTag string) (sess *domain.Session, err error) {
	ctx, span := startSpan(ctx, sessionTracer, "Open", actor, attribute.String("tag", rawTag))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	tag, err := s.normalizeTag(rawTag)
	if err != nil {
		return nil, err
	}

	sess, err = repo.CreateSession(ctx, s.DB, actor.StoreID, actor.ID, tag, s.Now.now())
	if err != nil {
		if isDuplicate(err) {
			return nil, &ConflictError{Entity: EntitySession, ID: tag, Reason: "tag already has an open session"}
		}
		return nil, err
	}
	s.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
	sessionsOpened.Inc()
	log.Ctx(ctx).Info().
		Str("session_id", sess.ID).
		Str("store_id", sess.StoreID).
		Str("tag", sess.Tag).
		Str("actor_id", actor.ID).
		Msg("session opened")
	return sess, nil
}

// Get returns a session of the actor's store.
func (s *SessionService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Session, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	sess, err := repo.GetSession(ctx, s.DB, actor.StoreID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntitySession, Key: id}
		}
		return nil, err
	}
	return sess, nil
}

// List returns a page of the store's sessions and the total count. The
// filter's StoreID is always the actor's store.
func (s *SessionService) List(ctx context.Context, actor domain.Actor, f SessionFilter, page, pageSize int) ([]domain.Session, int64, error) {
	if err := checkActor(actor); err != nil {
		return nil, 0, err
	}
	pg := utils.NewPage(page, pageSize)
	f.StoreID = actor.StoreID

	total, err := repo.CountSessions(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Session{}, 0, nil
	}
	out, err := repo.ListSessions(ctx, s.DB, f, pg.Offset(), pg.Size)
	return out, total, err
}

// LookupOpenByTag returns the open session for tag, or (nil, nil) when the
// tag is free. Hits may come from the cache; callers that mutate the
// session go through conditional UPDATEs that re-check the database.
func (s *SessionService) LookupOpenByTag(ctx context.Context, actor domain.Actor, rawTag string) (*domain.Session, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	tag, err := s.normalizeTag(rawTag)
	if err != nil {
		return nil, err
	}
	c := s.cache()
	if cached, ok := c.GetOpenByTag(ctx, actor.StoreID, tag); ok {
		return cached, nil
	}
	gen, cacheable := c.Generation(ctx, actor.StoreID, tag)
	sess, err := repo.FindOpenSessionByTag(ctx, s.DB, actor.StoreID, tag)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if cacheable {
		c.SetOpenByTag(ctx, sess, gen)
	}
	return sess, nil
}

// RecordEntryItem appends an in_room item to an in_progress session and
// bumps total_items_in in the same transaction. Duplicate barcodes are
// expected and allowed.
func (s *SessionService) RecordEntryItem(ctx context.Context, actor domain.Actor, sessionID, rawBarcode string) (it *domain.Item, err error) {
	ctx, span := startSpan(ctx, sessionTracer, "RecordEntryItem", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	barcode, err := s.normalizeBarcode(rawBarcode)
	if err != nil {
		return nil, err
	}

	now := s.Now.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := repo.NextItemSeq(ctx, tx, actor.StoreID, sessionID, now)
		if err != nil {
			if isNotFound(err) {
				return s.explainSession(ctx, tx, actor.StoreID, sessionID, "record entry item")
			}
			return err
		}
		it, err = repo.CreateItem(ctx, tx, sessionID, barcode, seq, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.StoreID, sessionID)
	return it, nil
}

// RemoveEntryItem hard-deletes an accidental entry scan. The item must be
// in_room and the session in_progress.
func (s *SessionService) RemoveEntryItem(ctx context.Context, actor domain.Actor, sessionID, itemID string) (err error) {
	ctx, span := startSpan(ctx, sessionTracer, "RemoveEntryItem", actor,
		attribute.String("session.id", sessionID),
		attribute.String("item.id", itemID),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return err
	}
	now := s.Now.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DecrementItemsIn(ctx, tx, actor.StoreID, sessionID, now); err != nil {
			if isNotFound(err) {
				return s.explainSession(ctx, tx, actor.StoreID, sessionID, "remove entry item")
			}
			return err
		}
		if err := repo.DeleteInRoomItem(ctx, tx, sessionID, itemID); err != nil {
			if isNotFound(err) {
				return explainItem(ctx, tx, sessionID, itemID, "remove")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, actor.StoreID, sessionID)
	return nil
}

// BeginExit moves an in_progress session to exiting. Calling it on a
// session that is already exiting is a no-op so an interrupted exit can be
// resumed.
func (s *SessionService) BeginExit(ctx context.Context, actor domain.Actor, sessionID string) (sess *domain.Session, err error) {
	ctx, span := startSpan(ctx, sessionTracer, "BeginExit", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.beginExit(ctx, s.DB, actor, sessionID)
}

func (s *SessionService) beginExit(ctx context.Context, db *gorm.DB, actor domain.Actor, sessionID string) (*domain.Session, error) {
	n, err := repo.MarkSessionExiting(ctx, db, actor.StoreID, sessionID, s.Now.now())
	if err != nil {
		return nil, err
	}
	sess, err := repo.GetSession(ctx, db, actor.StoreID, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntitySession, Key: sessionID}
		}
		return nil, err
	}
	if n == 0 && sess.Status != domain.SessionExiting {
		return nil, &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: "begin exit"}
	}
	if n > 0 {
		s.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
		log.Ctx(ctx).Info().Str("session_id", sess.ID).Str("actor_id", actor.ID).Msg("exit started")
	}
	return sess, nil
}

// Finalize closes an exiting session as complete or flagged with the given
// counters. It fails with *StateError when the session is not exiting, when
// items are still in the room, or when the counters do not add up to
// total_items_in.
func (s *SessionService) Finalize(ctx context.Context, actor domain.Actor, sessionID string, outcome domain.SessionStatus, counts domain.SessionCounts) (sess *domain.Session, err error) {
	ctx, span := startSpan(ctx, sessionTracer, "Finalize", actor,
		attribute.String("session.id", sessionID),
		attribute.String("outcome", string(outcome)),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if outcome != domain.SessionComplete && outcome != domain.SessionFlagged {
		return nil, ErrInvalidOutcome
	}
	sess, err = s.finalize(ctx, s.DB, actor, sessionID, outcome, counts)
	if err != nil {
		return nil, err
	}
	s.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
	return sess, nil
}

func (s *SessionService) finalize(ctx context.Context, db *gorm.DB, actor domain.Actor, sessionID string, outcome domain.SessionStatus, counts domain.SessionCounts) (*domain.Session, error) {
	n, err := repo.FinalizeSession(ctx, db, actor.StoreID, sessionID, outcome, counts, s.Now.now())
	if err != nil {
		return nil, err
	}
	sess, err := repo.GetSession(ctx, db, actor.StoreID, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntitySession, Key: sessionID}
		}
		return nil, err
	}
	if n == 0 {
		se := &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: "finalize as " + string(outcome)}
		if sess.Status == domain.SessionExiting {
			if sess.TotalItemsIn != counts.Resolved() {
				se.Reason = fmt.Sprintf("counters sum to %d, session has %d items", counts.Resolved(), sess.TotalItemsIn)
			} else {
				se.Reason = "items are still in the room"
			}
		}
		return nil, se
	}
	sessionsFinalized.WithLabelValues(string(outcome)).Inc()
	log.Ctx(ctx).Info().
		Str("session_id", sess.ID).
		Str("outcome", string(outcome)).
		Int("items_in", sess.TotalItemsIn).
		Int("purchased", sess.ItemsPurchased).
		Int("restocked", sess.ItemsRestocked).
		Int("lost", sess.ItemsLost).
		Msg("session finalized")
	return sess, nil
}

// Delete removes a cancelled or erroneous session together with its items
// and basket. Back-of-house and shrinkage records are kept.
func (s *SessionService) Delete(ctx context.Context, actor domain.Actor, sessionID string) (err error) {
	ctx, span := startSpan(ctx, sessionTracer, "Delete", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return err
	}
	sess, err := s.Get(ctx, actor, sessionID)
	if err != nil {
		return err
	}
	if err := repo.DeleteSession(ctx, s.DB, actor.StoreID, sessionID); err != nil {
		if isNotFound(err) {
			return &NotFoundError{Entity: EntitySession, Key: sessionID}
		}
		return err
	}
	s.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
	log.Ctx(ctx).Warn().Str("session_id", sessionID).Str("actor_id", actor.ID).Msg("session deleted")
	return nil
}

// invalidate drops the cached projection of a session after a mutation.
func (s *SessionService) invalidate(ctx context.Context, storeID, sessionID string) {
	if _, nop := s.cache().(NopSessionCache); nop {
		return
	}
	if sess, err := repo.GetSession(ctx, s.DB, storeID, sessionID); err == nil {
		s.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
	}
}

// explainSession converts a conditional UPDATE that matched no session row
// into NotFoundError or StateError.
func (s *SessionService) explainSession(ctx context.Context, db *gorm.DB, storeID, sessionID, attempted string) error {
	sess, err := repo.GetSession(ctx, db, storeID, sessionID)
	if err != nil {
		if isNotFound(err) {
			return &NotFoundError{Entity: EntitySession, Key: sessionID}
		}
		return err
	}
	return &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: attempted}
}

// explainItem converts a guarded item write that matched nothing into
// NotFoundError or StateError.
func explainItem(ctx context.Context, db *gorm.DB, sessionID, itemID, attempted string) error {
	it, err := repo.GetItem(ctx, db, sessionID, itemID)
	if err != nil {
		if isNotFound(err) {
			return &NotFoundError{Entity: EntityItem, Key: itemID}
		}
		return err
	}
	return &StateError{Entity: EntityItem, ID: itemID, From: string(it.Status), Attempted: attempted}
}
