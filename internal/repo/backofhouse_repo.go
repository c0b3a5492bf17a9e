// Back-of-house restock queue.

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// BackOfHouseFilter narrows ListBackOfHouse. ReceivedBefore keeps entries
// received at or before that instant, ReceivedAfter those received strictly
// after it; together they select a wait-time band.
type BackOfHouseFilter struct {
	StoreID        string
	Status         domain.BackOfHouseStatus
	SessionID      string
	ReceivedBefore *time.Time
	ReceivedAfter  *time.Time
}

func (f BackOfHouseFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("store_id = ?", f.StoreID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.ReceivedBefore != nil {
		q = q.Where("received_at <= ?", *f.ReceivedBefore)
	}
	if f.ReceivedAfter != nil {
		q = q.Where("received_at > ?", *f.ReceivedAfter)
	}
	return q
}

// CreateBackOfHouse enqueues a restocked barcode.
func CreateBackOfHouse(ctx context.Context, db *gorm.DB, storeID, sessionID, barcode, teamMemberID string, now time.Time) (*domain.BackOfHouseEntry, error) {
	e := &domain.BackOfHouseEntry{
		ID:           uuid.NewString(),
		StoreID:      storeID,
		SessionID:    sessionID,
		Barcode:      barcode,
		TeamMemberID: teamMemberID,
		Status:       domain.BackOfHouseAwaiting,
		ReceivedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// GetBackOfHouse fetches an entry by id within a store.
func GetBackOfHouse(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.BackOfHouseEntry, error) {
	var e domain.BackOfHouseEntry
	err := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkBackOfHouseReturned moves an awaiting entry to returned. The returned
// count is 0 when the entry was not awaiting.
func MarkBackOfHouseReturned(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.BackOfHouseEntry{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, domain.BackOfHouseAwaiting).
		Updates(map[string]any{
			"status":      domain.BackOfHouseReturned,
			"returned_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

// ListBackOfHouse returns entries oldest first, which is also most urgent
// first for awaiting entries.
func ListBackOfHouse(ctx context.Context, db *gorm.DB, f BackOfHouseFilter, offset, limit int) ([]domain.BackOfHouseEntry, error) {
	var out []domain.BackOfHouseEntry
	q := f.apply(db.WithContext(ctx).Model(&domain.BackOfHouseEntry{})).
		Order("received_at ASC, id ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountBackOfHouse counts entries matching f.
func CountBackOfHouse(ctx context.Context, db *gorm.DB, f BackOfHouseFilter) (int64, error) {
	var n int64
	err := f.apply(db.WithContext(ctx).Model(&domain.BackOfHouseEntry{})).Count(&n).Error
	return n, err
}

// BackOfHouseStore exposes the queue functions as a method set for
// services.BackOfHouseService.
type BackOfHouseStore struct{}

func (BackOfHouseStore) CreateBackOfHouse(ctx context.Context, db *gorm.DB, storeID, sessionID, barcode, teamMemberID string, now time.Time) (*domain.BackOfHouseEntry, error) {
	return CreateBackOfHouse(ctx, db, storeID, sessionID, barcode, teamMemberID, now)
}

func (BackOfHouseStore) GetBackOfHouse(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.BackOfHouseEntry, error) {
	return GetBackOfHouse(ctx, db, storeID, id)
}

func (BackOfHouseStore) MarkBackOfHouseReturned(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	return MarkBackOfHouseReturned(ctx, db, storeID, id, now)
}

func (BackOfHouseStore) ListBackOfHouse(ctx context.Context, db *gorm.DB, f BackOfHouseFilter, offset, limit int) ([]domain.BackOfHouseEntry, error) {
	return ListBackOfHouse(ctx, db, f, offset, limit)
}

func (BackOfHouseStore) CountBackOfHouse(ctx context.Context, db *gorm.DB, f BackOfHouseFilter) (int64, error) {
	return CountBackOfHouse(ctx, db, f)
}
