// Package services – ReconcileService
//
// ReconcileService drives the exit of a changing-room session: a tag scan
// starts (or resumes) the exit, each garment scan is matched FIFO against
// the session's unresolved items, and the operator's decision (purchased or
// restocked) is recorded together with its downstream record. Finishing
// either closes the session or opens the discrepancy sub-flow
// (discrepancy.go).
//
// The exit state is never held in memory. ExitState derives it from the
// session row and its unresolved items, so an abandoned exit resumes from
// whatever the database says.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
)

const reconcileTracer = "services/ReconcileService"

// ExitState is the position of a session in the exit flow.
type ExitState string

const (
	ExitAwaitingTag    ExitState = "awaiting_tag"
	ExitMatchingItems  ExitState = "matching_items"
	ExitAllResolved    ExitState = "all_resolved"
	ExitHasDiscrepancy ExitState = "has_discrepancy"
	ExitClosed         ExitState = "closed"
)

// Warning codes carried by ResolveResult.
const (
	WarnDuplicatesRemain = "duplicates_remaining"
	WarnBarcodeMismatch  = "barcode_mismatch"
)

// Warning is a non-fatal signal returned alongside a successful call.
type Warning struct {
	Code    string `json:"code"    example:"duplicates_remaining"`
	Message string `json:"message" example:"2 more items with barcode SKU1 are still in the room"`
}

// ExitView is the derived exit state of one session.
type ExitView struct {
	Session    *domain.Session `json:"session"`
	State      ExitState       `json:"state"`
	Unresolved []domain.Item   `json:"unresolved"`
}

// ScanMatch is the item an exit scan resolved to. Remaining counts every
// unresolved item with the same barcode, the match included.
type ScanMatch struct {
	Item      *domain.Item `json:"item"`
	Remaining int64        `json:"remaining"`
}

// ResolveResult describes one recorded resolution. At most one of Basket,
// BackOfHouse and Shrinkage is set, according to the outcome. Resolved is
// false only when a late scan did not match and nothing was consumed.
type ResolveResult struct {
	Resolved    bool                     `json:"resolved"`
	Item        *domain.Item             `json:"item"`
	Session     *domain.Session          `json:"session"`
	State       ExitState                `json:"state"`
	Basket      *domain.Basket           `json:"basket,omitempty"`
	BackOfHouse *domain.BackOfHouseEntry `json:"back_of_house,omitempty"`
	Shrinkage   *domain.ShrinkageEntry   `json:"shrinkage,omitempty"`
	Duplicates  int64                    `json:"duplicates_remaining"`
	Warnings    []Warning                `json:"warnings,omitempty"`
}

// ReconcileService orchestrates exits and discrepancies.
type ReconcileService struct {
	DB       *gorm.DB
	Sessions *SessionService
	Now      Clock
}

// NewReconcileService constructs a ReconcileService. Barcodes are
// normalized by the session service, and its clock is shared.
func NewReconcileService(db *gorm.DB, sessions *SessionService) *ReconcileService {
	return &ReconcileService{
		DB:       db,
		Sessions: sessions,
		Now:      sessions.Now,
	}
}

// DeriveExitState maps a session and its unresolved item count to a state.
func DeriveExitState(sess *domain.Session, unresolved int) ExitState {
	switch {
	case sess == nil || sess.Status == domain.SessionInProgress:
		return ExitAwaitingTag
	case sess.Status.IsTerminal():
		return ExitClosed
	case unresolved == 0:
		return ExitAllResolved
	case sess.DiscrepancyAt != nil:
		return ExitHasDiscrepancy
	default:
		return ExitMatchingItems
	}
}

// ExitState reads the current exit state of a session.
func (s *ReconcileService) ExitState(ctx context.Context, actor domain.Actor, sessionID string) (*ExitView, error) {
	sess, err := s.Sessions.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, s.DB, sess)
}

// StartExit looks up the open session for a scanned tag and moves it to
// exiting. A tag with no open session fails with *NotFoundError. Starting
// an exit that is already underway resumes it.
func (s *ReconcileService) StartExit(ctx context.Context, actor domain.Actor, rawTag string) (v *ExitView, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "StartExit", actor, attribute.String("tag", rawTag))
	defer func() { endSpan(span, err) }()

	open, err := s.Sessions.LookupOpenByTag(ctx, actor, rawTag)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, &NotFoundError{Entity: EntitySession, Key: scan.Normalize(rawTag), Reason: "no active session for tag"}
	}
	return s.resume(ctx, actor, open.ID)
}

// ResumeExit re-enters the exit flow of a session by id.
func (s *ReconcileService) ResumeExit(ctx context.Context, actor domain.Actor, sessionID string) (v *ExitView, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "ResumeExit", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	return s.resume(ctx, actor, sessionID)
}

func (s *ReconcileService) resume(ctx context.Context, actor domain.Actor, sessionID string) (*ExitView, error) {
	sess, err := s.Sessions.BeginExit(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, s.DB, sess)
}

// Scan matches an exit scan to the oldest unresolved item with the barcode.
// A barcode that is not (or no longer) in the room fails with
// *NotFoundError; the session is unaffected and the caller may rescan.
func (s *ReconcileService) Scan(ctx context.Context, actor domain.Actor, sessionID, rawBarcode string) (m *ScanMatch, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "Scan", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	barcode, err := s.Sessions.normalizeBarcode(rawBarcode)
	if err != nil {
		return nil, err
	}
	if _, err := s.exitingSession(ctx, actor, sessionID, "match exit scan"); err != nil {
		return nil, err
	}
	it, err := repo.FindFirstUnresolvedByBarcode(ctx, s.DB, sessionID, barcode)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntityItem, Key: barcode, Reason: "barcode is not in the room for this session"}
		}
		return nil, err
	}
	n, err := repo.CountUnresolvedByBarcode(ctx, s.DB, sessionID, barcode)
	if err != nil {
		return nil, err
	}
	return &ScanMatch{Item: it, Remaining: n}, nil
}

// Resolve records the operator's decision for a matched item: purchased
// items join the session basket, restocked items enter the back-of-house
// queue. Resolving an item twice fails with *StateError; the caller should
// rescan to get the next instance.
func (s *ReconcileService) Resolve(ctx context.Context, actor domain.Actor, sessionID, itemID string, outcome domain.ItemStatus) (r *ResolveResult, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "Resolve", actor,
		attribute.String("session.id", sessionID),
		attribute.String("item.id", itemID),
		attribute.String("outcome", string(outcome)),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if outcome != domain.ItemPurchased && outcome != domain.ItemRestocked {
		return nil, ErrInvalidOutcome
	}
	return s.resolve(ctx, actor, sessionID, itemID, outcome, "", false)
}

// ScanAndResolve matches a scan and records the decision in one call.
func (s *ReconcileService) ScanAndResolve(ctx context.Context, actor domain.Actor, sessionID, rawBarcode string, outcome domain.ItemStatus) (*ResolveResult, error) {
	if outcome != domain.ItemPurchased && outcome != domain.ItemRestocked {
		return nil, ErrInvalidOutcome
	}
	m, err := s.Scan(ctx, actor, sessionID, rawBarcode)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, actor, sessionID, m.Item.ID, outcome)
}

// Replay rebuilds the result of a resolution that already happened, for a
// client retrying a call whose response was lost. The item must be resolved;
// the session and state reflect the present, not the moment of resolution.
func (s *ReconcileService) Replay(ctx context.Context, actor domain.Actor, sessionID, itemID string) (*ResolveResult, error) {
	sess, err := s.Sessions.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	it, err := repo.GetItem(ctx, s.DB, sessionID, itemID)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntityItem, Key: itemID}
		}
		return nil, err
	}
	if !it.Status.IsResolved() {
		return nil, &StateError{Entity: EntityItem, ID: itemID, From: string(it.Status), Attempted: "replay resolution"}
	}
	v, err := s.view(ctx, s.DB, sess)
	if err != nil {
		return nil, err
	}
	res := &ResolveResult{Resolved: true, Item: it, Session: v.Session, State: v.State}
	if it.BasketID != nil {
		if b, err := repo.GetBasket(ctx, s.DB, sess.StoreID, *it.BasketID); err == nil {
			if b.Items, err = repo.ListBasketItems(ctx, s.DB, b.ID); err != nil {
				return nil, err
			}
			res.Basket = b
		}
	}
	if res.Duplicates, err = repo.CountUnresolvedByBarcode(ctx, s.DB, sessionID, it.Barcode); err != nil {
		return nil, err
	}
	return res, nil
}

// Finish ends the matching phase. With nothing left in the room the session
// is closed as complete (flagged if an item was marked lost). Otherwise the
// session enters the discrepancy sub-flow and the unresolved items are
// returned. Finishing an already closed session returns its closed view.
func (s *ReconcileService) Finish(ctx context.Context, actor domain.Actor, sessionID string) (v *ExitView, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "Finish", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	sess, err := s.Sessions.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case sess.Status.IsTerminal():
		return s.view(ctx, s.DB, sess)
	case sess.Status != domain.SessionExiting:
		return nil, &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: "finish exit"}
	}

	unresolved, err := repo.ListUnresolvedItems(ctx, s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if len(unresolved) == 0 {
		sess, err = s.close(ctx, s.DB, actor, sessionID)
		if err != nil {
			return nil, err
		}
		s.Sessions.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
		return &ExitView{Session: sess, State: ExitClosed, Unresolved: []domain.Item{}}, nil
	}

	n, err := repo.MarkDiscrepancy(ctx, s.DB, actor.StoreID, sessionID, s.Now.now())
	if err != nil {
		return nil, err
	}
	if n > 0 {
		discrepanciesOpened.Inc()
		log.Ctx(ctx).Warn().
			Str("session_id", sessionID).
			Int("unresolved", len(unresolved)).
			Str("actor_id", actor.ID).
			Msg("exit finished with unresolved items")
	}
	if sess, err = s.Sessions.Get(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	s.Sessions.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
	return &ExitView{Session: sess, State: DeriveExitState(sess, len(unresolved)), Unresolved: unresolved}, nil
}

// close finalizes an exiting session from its item rows: complete, or
// flagged when any item was lost. The counters written are recounted from
// the items and must agree with the live total_items_in.
func (s *ReconcileService) close(ctx context.Context, db *gorm.DB, actor domain.Actor, sessionID string) (*domain.Session, error) {
	byStatus, err := repo.CountItemsByStatus(ctx, db, sessionID)
	if err != nil {
		return nil, err
	}
	counts := domain.SessionCounts{
		ItemsPurchased: byStatus[domain.ItemPurchased],
		ItemsRestocked: byStatus[domain.ItemRestocked],
		ItemsLost:      byStatus[domain.ItemLost],
	}
	counts.TotalItemsOut = counts.Resolved()
	outcome := domain.SessionComplete
	if counts.ItemsLost > 0 {
		outcome = domain.SessionFlagged
	}
	return s.Sessions.finalize(ctx, db, actor, sessionID, outcome, counts)
}

// resolve is the shared resolution transaction for every exit path. Exit
// scans are accepted only until a discrepancy is opened; from then on only
// the discrepancy sub-flow (late scan, mark lost) resolves items.
func (s *ReconcileService) resolve(ctx context.Context, actor domain.Actor, sessionID, itemID string, outcome domain.ItemStatus, notes string, discrepancy bool) (*ResolveResult, error) {
	now := s.Now.now()
	res := &ResolveResult{Resolved: true}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, sess, err := resolveItem(ctx, tx, actor, sessionID, itemID, outcome, now)
		if err != nil {
			return err
		}
		switch {
		case discrepancy && sess.DiscrepancyAt == nil:
			return &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: "resolve via discrepancy", Reason: "no discrepancy is open"}
		case !discrepancy && sess.DiscrepancyAt != nil:
			return &StateError{Entity: EntitySession, ID: sessionID, From: string(ExitHasDiscrepancy), Attempted: "resolve exit scan", Reason: "use late scan or mark lost"}
		}
		res.Item = it

		switch outcome {
		case domain.ItemPurchased:
			b, err := getOrCreateBasket(ctx, tx, sess.StoreID, sessionID, now)
			if err != nil {
				return err
			}
			if err := attachItem(ctx, tx, b, it.ID); err != nil {
				return err
			}
			it.BasketID = &b.ID
			res.Basket = b
		case domain.ItemRestocked:
			e, err := repo.CreateBackOfHouse(ctx, tx, sess.StoreID, sessionID, it.Barcode, actor.ID, now)
			if err != nil {
				return err
			}
			res.BackOfHouse = e
		case domain.ItemLost:
			e, err := repo.CreateShrinkage(ctx, tx, sess.StoreID, sessionID, it.Barcode, actor.ID, clipNotes(notes), now)
			if err != nil {
				return err
			}
			res.Shrinkage = e
		}

		if res.Duplicates, err = repo.CountUnresolvedByBarcode(ctx, tx, sessionID, it.Barcode); err != nil {
			return err
		}

		// Once a discrepancy is open the session closes itself with its
		// last item.
		if sess.DiscrepancyAt != nil {
			left, err := repo.ListUnresolvedItems(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			if len(left) == 0 {
				if _, err := s.close(ctx, tx, actor, sessionID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	itemsResolved.WithLabelValues(string(outcome)).Inc()

	if res.Basket != nil {
		if res.Basket.Items, err = repo.ListBasketItems(ctx, s.DB, res.Basket.ID); err != nil {
			return nil, err
		}
	}
	sess, err := repo.GetSession(ctx, s.DB, actor.StoreID, sessionID)
	if err != nil {
		return nil, err
	}
	s.Sessions.cache().Invalidate(ctx, sess.StoreID, sess.Tag)
	v, err := s.view(ctx, s.DB, sess)
	if err != nil {
		return nil, err
	}
	res.Session, res.State = v.Session, v.State

	if res.Duplicates > 0 {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnDuplicatesRemain,
			Message: fmt.Sprintf("%d more item(s) with barcode %s still in the room; the next scan resolves the next oldest", res.Duplicates, res.Item.Barcode),
		})
	}
	log.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("item_id", itemID).
		Str("barcode", res.Item.Barcode).
		Str("outcome", string(outcome)).
		Str("state", string(res.State)).
		Str("actor_id", actor.ID).
		Msg("item resolved")
	return res, nil
}

// exitingSession loads a session and requires it to be exiting.
func (s *ReconcileService) exitingSession(ctx context.Context, actor domain.Actor, sessionID, attempted string) (*domain.Session, error) {
	sess, err := s.Sessions.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionExiting {
		return nil, &StateError{Entity: EntitySession, ID: sessionID, From: string(sess.Status), Attempted: attempted}
	}
	return sess, nil
}

func (s *ReconcileService) view(ctx context.Context, db *gorm.DB, sess *domain.Session) (*ExitView, error) {
	unresolved, err := repo.ListUnresolvedItems(ctx, db, sess.ID)
	if err != nil {
		return nil, err
	}
	return &ExitView{Session: sess, State: DeriveExitState(sess, len(unresolved)), Unresolved: unresolved}, nil
}
