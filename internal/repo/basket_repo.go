// Baskets and the per-store basket number sequence.

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// nextBasketNumberSQL allocates the next number for a store in one
// statement. Concurrent callers serialize on the sequence row, so no two
// receive the same value.
const nextBasketNumberSQL = `INSERT INTO basket_sequences (store_id, last_number) VALUES (?, 1)
ON CONFLICT (store_id) DO UPDATE SET last_number = basket_sequences.last_number + 1
RETURNING last_number`

// NextBasketNumber returns the next store-scoped basket number.
func NextBasketNumber(ctx context.Context, db *gorm.DB, storeID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Raw(nextBasketNumberSQL, storeID).Scan(&n).Error
	return n, err
}

// CreateBasket inserts an active basket for a session.
func CreateBasket(ctx context.Context, db *gorm.DB, storeID, sessionID string, number int64, now time.Time) (*domain.Basket, error) {
	b := &domain.Basket{
		ID:           uuid.NewString(),
		StoreID:      storeID,
		BasketNumber: number,
		SessionID:    sessionID,
		Status:       domain.BasketActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBasket fetches a basket by id within a store.
func GetBasket(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.Basket, error) {
	var b domain.Basket
	err := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBasketBySession returns the basket owned by a session, or ErrNotFound.
func GetBasketBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Basket, error) {
	var b domain.Basket
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetBasketStatus moves an active basket to a terminal status. The returned
// count is 0 when the basket was not active.
func SetBasketStatus(ctx context.Context, db *gorm.DB, storeID, id string, status domain.BasketStatus, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Basket{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, domain.BasketActive).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

// ListBaskets returns a store's baskets in the given status, newest first.
func ListBaskets(ctx context.Context, db *gorm.DB, storeID string, status domain.BasketStatus, offset, limit int) ([]domain.Basket, error) {
	var out []domain.Basket
	q := db.WithContext(ctx).
		Where("store_id = ? AND status = ?", storeID, status).
		Order("created_at DESC, basket_number DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountBaskets counts a store's baskets in the given status.
func CountBaskets(ctx context.Context, db *gorm.DB, storeID string, status domain.BasketStatus) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Basket{}).
		Where("store_id = ? AND status = ?", storeID, status).
		Count(&n).Error
	return n, err
}

// DeleteBasket removes a basket row. Items keep their purchased status.
func DeleteBasket(ctx context.Context, db *gorm.DB, storeID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		Delete(&domain.Basket{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBasketsResolvedBefore returns baskets in status whose resolved_at is
// older than cutoff, across all stores, oldest first.
func ListBasketsResolvedBefore(ctx context.Context, db *gorm.DB, status domain.BasketStatus, cutoff time.Time, limit int) ([]domain.Basket, error) {
	var out []domain.Basket
	q := db.WithContext(ctx).
		Where("status = ? AND resolved_at IS NOT NULL AND resolved_at < ?", status, cutoff).
		Order("resolved_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
