package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// fifoOrder is the deterministic first-in first-out ordering of items.
const fifoOrder = "scanned_in_at ASC, seq ASC"

// CreateItem inserts an in_room item with the given sequence number.
func CreateItem(ctx context.Context, db *gorm.DB, sessionID, barcode string, seq int64, now time.Time) (*domain.Item, error) {
	it := &domain.Item{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Seq:         seq,
		Barcode:     barcode,
		Status:      domain.ItemInRoom,
		ScannedInAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, err
	}
	return it, nil
}

// GetItem fetches an item by id within a session.
func GetItem(ctx context.Context, db *gorm.DB, sessionID, id string) (*domain.Item, error) {
	var it domain.Item
	err := db.WithContext(ctx).
		Where("id = ? AND session_id = ?", id, sessionID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// DeleteInRoomItem hard-deletes an item that is still in_room. It returns
// ErrNotFound when no such row matched.
func DeleteInRoomItem(ctx context.Context, db *gorm.DB, sessionID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND session_id = ? AND status = ?", id, sessionID, domain.ItemInRoom).
		Delete(&domain.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveItem moves an in_room item to outcome. The UPDATE is guarded by
// status = 'in_room', so of two racing calls exactly one sees a row
// affected. The returned count is 0 when the guard did not match.
func ResolveItem(ctx context.Context, db *gorm.DB, sessionID, id string, outcome domain.ItemStatus, actorID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ? AND session_id = ? AND status = ?", id, sessionID, domain.ItemInRoom).
		Updates(map[string]any{
			"status":      outcome,
			"resolved_at": now,
			"resolved_by": actorID,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

// AttachItemToBasket links a purchased item to a basket.
func AttachItemToBasket(ctx context.Context, db *gorm.DB, itemID, basketID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ? AND status = ?", itemID, domain.ItemPurchased).
		Update("basket_id", basketID)
	return res.RowsAffected, res.Error
}

// DetachBasketItems clears basket_id on every item of a basket.
func DetachBasketItems(ctx context.Context, db *gorm.DB, basketID string) error {
	return db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("basket_id = ?", basketID).
		Update("basket_id", nil).Error
}

// FindFirstUnresolvedByBarcode returns the earliest scanned in_room item
// with barcode in the session, or ErrNotFound.
func FindFirstUnresolvedByBarcode(ctx context.Context, db *gorm.DB, sessionID, barcode string) (*domain.Item, error) {
	var it domain.Item
	err := db.WithContext(ctx).
		Where("session_id = ? AND barcode = ? AND status = ?", sessionID, barcode, domain.ItemInRoom).
		Order(fifoOrder).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CountUnresolvedByBarcode counts in_room items with barcode in the session.
func CountUnresolvedByBarcode(ctx context.Context, db *gorm.DB, sessionID, barcode string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("session_id = ? AND barcode = ? AND status = ?", sessionID, barcode, domain.ItemInRoom).
		Count(&n).Error
	return n, err
}

// ListUnresolvedItems returns every in_room item of a session in FIFO order.
func ListUnresolvedItems(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Item, error) {
	var out []domain.Item
	err := db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, domain.ItemInRoom).
		Order(fifoOrder).
		Find(&out).Error
	return out, err
}

// ListItems returns all items of a session in FIFO order.
func ListItems(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Item, error) {
	var out []domain.Item
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order(fifoOrder).
		Find(&out).Error
	return out, err
}

// ListBasketItems returns the items attached to a basket.
func ListBasketItems(ctx context.Context, db *gorm.DB, basketID string) ([]domain.Item, error) {
	var out []domain.Item
	err := db.WithContext(ctx).
		Where("basket_id = ?", basketID).
		Order(fifoOrder).
		Find(&out).Error
	return out, err
}

// CountItemsByStatus groups a session's items by status. Missing statuses
// are absent from the map.
func CountItemsByStatus(ctx context.Context, db *gorm.DB, sessionID string) (map[domain.ItemStatus]int, error) {
	var rows []struct {
		Status domain.ItemStatus
		N      int
	}
	err := db.WithContext(ctx).
		Model(&domain.Item{}).
		Select("status, COUNT(*) AS n").
		Where("session_id = ?", sessionID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ItemStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
