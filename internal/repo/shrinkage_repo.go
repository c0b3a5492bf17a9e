// Shrinkage log queries.

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// ShrinkageFilter narrows ListShrinkage / CountShrinkage on lost_at.
type ShrinkageFilter struct {
	StoreID string
	Status  domain.ShrinkageStatus
	Barcode string
	From    *time.Time
	To      *time.Time
}

func (f ShrinkageFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("store_id = ?", f.StoreID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Barcode != "" {
		q = q.Where("barcode = ?", f.Barcode)
	}
	if f.From != nil {
		q = q.Where("lost_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("lost_at < ?", *f.To)
	}
	return q
}

// CreateShrinkage records a lost barcode.
func CreateShrinkage(ctx context.Context, db *gorm.DB, storeID, sessionID, barcode, teamMemberID, notes string, now time.Time) (*domain.ShrinkageEntry, error) {
	e := &domain.ShrinkageEntry{
		ID:           uuid.NewString(),
		StoreID:      storeID,
		SessionID:    sessionID,
		Barcode:      barcode,
		TeamMemberID: teamMemberID,
		Status:       domain.ShrinkageLost,
		LostAt:       now,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// GetShrinkage fetches an entry by id within a store.
func GetShrinkage(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.ShrinkageEntry, error) {
	var e domain.ShrinkageEntry
	err := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkShrinkageRecovered moves a lost entry to recovered. The returned
// count is 0 when the entry was not lost.
func MarkShrinkageRecovered(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ShrinkageEntry{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, domain.ShrinkageLost).
		Updates(map[string]any{
			"status":       domain.ShrinkageRecovered,
			"recovered_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

// ListShrinkage returns entries newest loss first.
func ListShrinkage(ctx context.Context, db *gorm.DB, f ShrinkageFilter, offset, limit int) ([]domain.ShrinkageEntry, error) {
	var out []domain.ShrinkageEntry
	q := f.apply(db.WithContext(ctx).Model(&domain.ShrinkageEntry{})).
		Order("lost_at DESC, id DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountShrinkage counts entries matching f.
func CountShrinkage(ctx context.Context, db *gorm.DB, f ShrinkageFilter) (int64, error) {
	var n int64
	err := f.apply(db.WithContext(ctx).Model(&domain.ShrinkageEntry{})).Count(&n).Error
	return n, err
}

// ShrinkageStore exposes the log functions as a method set for
// services.ShrinkageService.
type ShrinkageStore struct{}

func (ShrinkageStore) CreateShrinkage(ctx context.Context, db *gorm.DB, storeID, sessionID, barcode, teamMemberID, notes string, now time.Time) (*domain.ShrinkageEntry, error) {
	return CreateShrinkage(ctx, db, storeID, sessionID, barcode, teamMemberID, notes, now)
}

func (ShrinkageStore) GetShrinkage(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.ShrinkageEntry, error) {
	return GetShrinkage(ctx, db, storeID, id)
}

func (ShrinkageStore) MarkShrinkageRecovered(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	return MarkShrinkageRecovered(ctx, db, storeID, id, now)
}

func (ShrinkageStore) ListShrinkage(ctx context.Context, db *gorm.DB, f ShrinkageFilter, offset, limit int) ([]domain.ShrinkageEntry, error) {
	return ListShrinkage(ctx, db, f, offset, limit)
}

func (ShrinkageStore) CountShrinkage(ctx context.Context, db *gorm.DB, f ShrinkageFilter) (int64, error) {
	return CountShrinkage(ctx, db, f)
}
