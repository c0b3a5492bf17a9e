// Package services – BasketService
//
// Baskets group a session's purchased items for hand-off to the till. A
// basket is created lazily on the first purchase of an exit and numbered
// from a store-scoped sequence advanced by one atomic upsert. Numbers are
// allocated inside a savepoint so a losing find-or-create race gives its
// number back and the store's numbering stays contiguous.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/utils"
)

const basketTracer = "services/BasketService"

// errBasketExists rolls back a number allocation when the session already
// has a basket.
var errBasketExists = errors.New("basket exists")

// BasketService manages basket grouping and disposition.
type BasketService struct {
	DB  *gorm.DB
	Now Clock
}

// NewBasketService constructs a BasketService.
func NewBasketService(db *gorm.DB) *BasketService {
	return &BasketService{DB: db}
}

// GetOrCreate returns the session's basket, creating it with the next store
// number when missing.
func (s *BasketService) GetOrCreate(ctx context.Context, actor domain.Actor, sessionID string) (b *domain.Basket, err error) {
	ctx, span := startSpan(ctx, basketTracer, "GetOrCreate", actor, attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if _, err := repo.GetSession(ctx, s.DB, actor.StoreID, sessionID); err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntitySession, Key: sessionID}
		}
		return nil, err
	}
	if b, err := repo.GetBasketBySession(ctx, s.DB, sessionID); err == nil {
		return b, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		b, err = getOrCreateBasket(ctx, tx, actor.StoreID, sessionID, s.Now.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// getOrCreateBasket runs inside tx. The sequence upsert is the first
// statement of the savepoint so that on SQLite it also takes the write
// lock before the existence check.
func getOrCreateBasket(ctx context.Context, tx *gorm.DB, storeID, sessionID string, now time.Time) (*domain.Basket, error) {
	var b *domain.Basket
	err := tx.Transaction(func(sp *gorm.DB) error {
		number, err := repo.NextBasketNumber(ctx, sp, storeID)
		if err != nil {
			return err
		}
		existing, err := repo.GetBasketBySession(ctx, sp, sessionID)
		switch {
		case err == nil:
			b = existing
			return errBasketExists
		case !isNotFound(err):
			return err
		}
		b, err = repo.CreateBasket(ctx, sp, storeID, sessionID, number, now)
		return err
	})
	switch {
	case err == nil:
		log.Ctx(ctx).Info().
			Str("basket_id", b.ID).
			Int64("basket_number", b.BasketNumber).
			Str("session_id", sessionID).
			Msg("basket created")
		return b, nil
	case errors.Is(err, errBasketExists):
		return b, nil
	case isDuplicate(err):
		// Another transaction committed the session's basket first.
		if existing, gerr := repo.GetBasketBySession(ctx, tx, sessionID); gerr == nil {
			return existing, nil
		}
		return nil, &ConflictError{Entity: EntityBasket, ID: sessionID, Reason: "session already has a basket"}
	default:
		return nil, err
	}
}

// Attach links a purchased item of the basket's session to the basket.
func (s *BasketService) Attach(ctx context.Context, actor domain.Actor, itemID, basketID string) (err error) {
	ctx, span := startSpan(ctx, basketTracer, "Attach", actor,
		attribute.String("item.id", itemID),
		attribute.String("basket.id", basketID),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return err
	}
	b, err := s.get(ctx, actor.StoreID, basketID)
	if err != nil {
		return err
	}
	if b.Status != domain.BasketActive {
		return &StateError{Entity: EntityBasket, ID: basketID, From: string(b.Status), Attempted: "attach item"}
	}
	return attachItem(ctx, s.DB, b, itemID)
}

func attachItem(ctx context.Context, db *gorm.DB, b *domain.Basket, itemID string) error {
	it, err := repo.GetItem(ctx, db, b.SessionID, itemID)
	if err != nil {
		if isNotFound(err) {
			return &NotFoundError{Entity: EntityItem, Key: itemID, Reason: "item is not part of the basket's session"}
		}
		return err
	}
	n, err := repo.AttachItemToBasket(ctx, db, it.ID, b.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return &StateError{Entity: EntityItem, ID: itemID, From: string(it.Status), Attempted: "attach to basket", Reason: "only purchased items join a basket"}
	}
	return nil
}

// SetDisposition moves an active basket to abandoned or transferred. Item
// statuses and session counters are not touched.
func (s *BasketService) SetDisposition(ctx context.Context, actor domain.Actor, basketID string, disposition domain.BasketStatus) (b *domain.Basket, err error) {
	ctx, span := startSpan(ctx, basketTracer, "SetDisposition", actor,
		attribute.String("basket.id", basketID),
		attribute.String("disposition", string(disposition)),
	)
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if _, ok := domain.ParseBasketDisposition(string(disposition)); !ok {
		return nil, ErrInvalidDisposition
	}
	n, err := repo.SetBasketStatus(ctx, s.DB, actor.StoreID, basketID, disposition, s.Now.now())
	if err != nil {
		return nil, err
	}
	b, err = s.get(ctx, actor.StoreID, basketID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &StateError{Entity: EntityBasket, ID: basketID, From: string(b.Status), Attempted: "set disposition " + string(disposition)}
	}
	basketDispositions.WithLabelValues(string(disposition)).Inc()
	log.Ctx(ctx).Info().
		Str("basket_id", b.ID).
		Int64("basket_number", b.BasketNumber).
		Str("disposition", string(disposition)).
		Str("actor_id", actor.ID).
		Msg("basket resolved")
	return b, nil
}

// Get returns a basket of the actor's store with its items loaded.
func (s *BasketService) Get(ctx context.Context, actor domain.Actor, basketID string) (*domain.Basket, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	b, err := s.get(ctx, actor.StoreID, basketID)
	if err != nil {
		return nil, err
	}
	if b.Items, err = repo.ListBasketItems(ctx, s.DB, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBySession returns the session's basket with items, or (nil, nil) when
// nothing has been purchased yet.
func (s *BasketService) GetBySession(ctx context.Context, actor domain.Actor, sessionID string) (*domain.Basket, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	b, err := repo.GetBasketBySession(ctx, s.DB, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if b.StoreID != actor.StoreID {
		return nil, nil
	}
	if b.Items, err = repo.ListBasketItems(ctx, s.DB, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// ListActive returns a page of the store's active baskets, each with its
// items, and the total number of active baskets.
func (s *BasketService) ListActive(ctx context.Context, actor domain.Actor, page, pageSize int) ([]domain.Basket, int64, error) {
	if err := checkActor(actor); err != nil {
		return nil, 0, err
	}
	pg := utils.NewPage(page, pageSize)
	total, err := repo.CountBaskets(ctx, s.DB, actor.StoreID, domain.BasketActive)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Basket{}, 0, nil
	}
	out, err := repo.ListBaskets(ctx, s.DB, actor.StoreID, domain.BasketActive, pg.Offset(), pg.Size)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		if out[i].Items, err = repo.ListBasketItems(ctx, s.DB, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// Delete removes a resolved basket's grouping record. Its items keep their
// purchased status; only basket_id is cleared. Active baskets cannot be
// deleted.
func (s *BasketService) Delete(ctx context.Context, actor domain.Actor, basketID string) (err error) {
	ctx, span := startSpan(ctx, basketTracer, "Delete", actor, attribute.String("basket.id", basketID))
	defer func() { endSpan(span, err) }()

	if err := checkActor(actor); err != nil {
		return err
	}
	b, err := s.get(ctx, actor.StoreID, basketID)
	if err != nil {
		return err
	}
	if b.Status == domain.BasketActive {
		return &StateError{Entity: EntityBasket, ID: basketID, From: string(b.Status), Attempted: "delete"}
	}
	return deleteBasket(ctx, s.DB, b)
}

func deleteBasket(ctx context.Context, db *gorm.DB, b *domain.Basket) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DetachBasketItems(ctx, tx, b.ID); err != nil {
			return err
		}
		if err := repo.DeleteBasket(ctx, tx, b.StoreID, b.ID); err != nil {
			if isNotFound(err) {
				return &NotFoundError{Entity: EntityBasket, Key: b.ID}
			}
			return err
		}
		return nil
	})
}

// PurgeTransferred deletes transferred baskets resolved more than
// olderThan ago, across stores, and returns how many were removed.
func (s *BasketService) PurgeTransferred(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.Now.now().Add(-olderThan)
	old, err := repo.ListBasketsResolvedBefore(ctx, s.DB, domain.BasketTransferred, cutoff, 500)
	if err != nil {
		return 0, err
	}
	purged := 0
	for i := range old {
		if err := deleteBasket(ctx, s.DB, &old[i]); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (s *BasketService) get(ctx context.Context, storeID, basketID string) (*domain.Basket, error) {
	b, err := repo.GetBasket(ctx, s.DB, storeID, basketID)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Entity: EntityBasket, Key: basketID}
		}
		return nil, err
	}
	return b, nil
}
