package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
)

// LateScan resolves an unresolved item of an open discrepancy after the
// garment turns up and is scanned. The scanned barcode must equal the
// item's barcode exactly. A mismatch is not an error: the result carries a
// barcode_mismatch warning, Resolved is false and the item stays in the
// room.
func (s *ReconcileService) LateScan(ctx context.Context, actor domain.Actor, sessionID, itemID, rawBarcode string, outcome domain.ItemStatus) (r *ResolveResult, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "LateScan", actor,
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
	barcode, err := s.Sessions.normalizeBarcode(rawBarcode)
	if err != nil {
		return nil, err
	}
	sess, err := s.exitingSession(ctx, actor, sessionID, "late scan")
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
	if it.Status != domain.ItemInRoom {
		return nil, &StateError{Entity: EntityItem, ID: itemID, From: string(it.Status), Attempted: "late scan"}
	}

	if barcode != it.Barcode {
		v, err := s.view(ctx, s.DB, sess)
		if err != nil {
			return nil, err
		}
		return &ResolveResult{
			Item:    it,
			Session: v.Session,
			State:   v.State,
			Warnings: []Warning{{
				Code:    WarnBarcodeMismatch,
				Message: fmt.Sprintf("scanned %s but the item is %s; nothing was resolved", barcode, it.Barcode),
			}},
		}, nil
	}
	return s.resolve(ctx, actor, sessionID, itemID, outcome, "", true)
}

// MarkLost resolves an unresolved item of an open discrepancy as lost and
// records it in the shrinkage log. It is not reversible from the exit flow;
// recovering the garment later goes through ShrinkageService.Recover and
// leaves the item and session as they are.
func (s *ReconcileService) MarkLost(ctx context.Context, actor domain.Actor, sessionID, itemID, notes string) (r *ResolveResult, err error) {
	ctx, span := startSpan(ctx, reconcileTracer, "MarkLost", actor,
		attribute.String("session.id", sessionID),
		attribute.String("item.id", itemID),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.resolve(ctx, actor, sessionID, itemID, domain.ItemLost, notes, true)
}
