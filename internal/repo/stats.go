// Count and latest-update aggregates behind the weak ETags of list endpoints.

package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// SessionsStats returns aggregate metadata for a store's sessions: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the store has no sessions, the returned count is 0 and maxUpdatedAt
// is nil.
func SessionsStats(ctx context.Context, db *gorm.DB, storeID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return latestStats(ctx, db.WithContext(ctx).Model(&domain.Session{}).Where("store_id = ?", storeID))
}

// ItemsStats returns aggregate metadata for the items of one session: the
// total number of rows and the maximum UpdatedAt timestamp.
func ItemsStats(ctx context.Context, db *gorm.DB, sessionID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return latestStats(ctx, db.WithContext(ctx).Model(&domain.Item{}).Where("session_id = ?", sessionID))
}

// BackOfHouseStats returns aggregate metadata for a store's back-of-house
// queue.
func BackOfHouseStats(ctx context.Context, db *gorm.DB, storeID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return latestStats(ctx, db.WithContext(ctx).Model(&domain.BackOfHouseEntry{}).Where("store_id = ?", storeID))
}

func latestStats(_ context.Context, q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	// Count
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
