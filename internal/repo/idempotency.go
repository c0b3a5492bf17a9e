package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// ErrDuplicate is returned by SaveReplay when the key is already taken.
var ErrDuplicate = errors.New("duplicate")

// ReplayKey identifies a stored resolution: the actor that sent the
// Idempotency-Key, the session it was sent for, and the key itself.
type ReplayKey struct {
	ActorID   string
	SessionID string
	Key       string
}

func (k ReplayKey) complete() bool {
	return strings.TrimSpace(k.ActorID) != "" && strings.TrimSpace(k.SessionID) != "" && k.Key != ""
}

// FindReplay returns the unexpired record for k or ErrNotFound.
func FindReplay(ctx context.Context, db *gorm.DB, k ReplayKey, now time.Time) (*domain.Idempotency, error) {
	if !k.complete() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("actor_id = ? AND session_id = ? AND key = ? AND expires_at > ?", k.ActorID, k.SessionID, k.Key, now).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// HasReplay reports whether FindReplay would return a record.
func HasReplay(ctx context.Context, db *gorm.DB, k ReplayKey, now time.Time) (bool, error) {
	_, err := FindReplay(ctx, db, k, now)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// SaveReplay records that k resolved itemID with the given HTTP status. The
// record expires ttl after now. A second save for the same key inserts
// nothing and returns ErrDuplicate, so the first resolution always wins.
func SaveReplay(ctx context.Context, db *gorm.DB, k ReplayKey, itemID string, status int, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		ActorID:   k.ActorID,
		SessionID: k.SessionID,
		Key:       k.Key,
		ItemID:    itemID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeExpiredReplays deletes records whose TTL has elapsed.
func PurgeExpiredReplays(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
