// Session queries. Guards that must hold atomically (open tag uniqueness,
// forward-only status) are constraints or conditional UPDATEs; callers read
// RowsAffected to detect a lost race. A missing session is ErrNotFound.

package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// SessionFilter narrows ListSessions / CountSessions. Zero values mean
// "no constraint".
type SessionFilter struct {
	StoreID  string
	Statuses []domain.SessionStatus
	Tag      string
	From     *time.Time // entry_time >= From
	To       *time.Time // entry_time < To
}

func (f SessionFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("store_id = ?", f.StoreID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Tag != "" {
		q = q.Where("tag = ?", f.Tag)
	}
	if f.From != nil {
		q = q.Where("entry_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("entry_time < ?", *f.To)
	}
	return q
}

// CreateSession inserts a new in_progress session for tag. A second open
// session for the same (store, tag) violates ux_sessions_open_tag and the
// raw constraint error is returned.
func CreateSession(ctx context.Context, db *gorm.DB, storeID, teamMemberID, tag string, now time.Time) (*domain.Session, error) {
	s := &domain.Session{
		ID:           uuid.NewString(),
		StoreID:      storeID,
		TeamMemberID: teamMemberID,
		Tag:          tag,
		Status:       domain.SessionInProgress,
		EntryTime:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by id within a store.
func GetSession(ctx context.Context, db *gorm.DB, storeID, id string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOpenSessionByTag returns the in_progress or exiting session holding
// tag, or ErrNotFound.
func FindOpenSessionByTag(ctx context.Context, db *gorm.DB, storeID, tag string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("store_id = ? AND tag = ? AND status IN ?", storeID, tag, domain.OpenSessionStatuses).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns a page of sessions, newest entry first.
func ListSessions(ctx context.Context, db *gorm.DB, f SessionFilter, offset, limit int) ([]domain.Session, error) {
	var out []domain.Session
	q := f.apply(db.WithContext(ctx).Model(&domain.Session{})).
		Order("entry_time DESC, id DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountSessions returns the number of sessions matching f.
func CountSessions(ctx context.Context, db *gorm.DB, f SessionFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Session{})).Count(&total).Error
	return total, err
}

// NextItemSeq bumps total_items_in and item_seq of an in_progress session
// and returns the new sequence value. It returns ErrNotFound when no
// in_progress session with that id exists in the store. Inside a
// transaction this UPDATE is the first write and takes the write lock.
func NextItemSeq(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, domain.SessionInProgress).
		Updates(map[string]any{
			"total_items_in": gorm.Expr("total_items_in + 1"),
			"item_seq":       gorm.Expr("item_seq + 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	var seq int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Select("item_seq").
		Scan(&seq).Error
	return seq, err
}

// DecrementItemsIn undoes one entry scan on an in_progress session. It
// returns ErrNotFound when the guard does not match.
func DecrementItemsIn(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND store_id = ? AND status = ? AND total_items_in > 0", id, storeID, domain.SessionInProgress).
		Updates(map[string]any{
			"total_items_in": gorm.Expr("total_items_in - 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSessionExiting moves an in_progress session to exiting. The returned
// count is 0 when the session was not in_progress.
func MarkSessionExiting(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, domain.SessionInProgress).
		Updates(map[string]any{
			"status":          domain.SessionExiting,
			"exit_start_time": now,
			"updated_at":      now,
		})
	return res.RowsAffected, res.Error
}

// MarkDiscrepancy stamps discrepancy_at on an exiting session the first
// time it is finished with items still unresolved.
func MarkDiscrepancy(ctx context.Context, db *gorm.DB, storeID, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND store_id = ? AND status = ? AND discrepancy_at IS NULL", id, storeID, domain.SessionExiting).
		Updates(map[string]any{
			"discrepancy_at": now,
			"updated_at":     now,
		})
	return res.RowsAffected, res.Error
}

// IncrementOutcome adds one resolved item to the live counters of a session.
func IncrementOutcome(ctx context.Context, db *gorm.DB, id string, outcome domain.ItemStatus, now time.Time) error {
	col := outcomeColumn(outcome)
	if col == "" {
		return fmt.Errorf("no counter for outcome %q", outcome)
	}
	return db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			col:               gorm.Expr(col + " + 1"),
			"total_items_out": gorm.Expr("total_items_out + 1"),
			"updated_at":      now,
		}).Error
}

func outcomeColumn(outcome domain.ItemStatus) string {
	switch outcome {
	case domain.ItemPurchased:
		return "items_purchased"
	case domain.ItemRestocked:
		return "items_restocked"
	case domain.ItemLost:
		return "items_lost"
	default:
		return ""
	}
}

// FinalizeSession closes an exiting session with the given outcome and
// counters. The UPDATE only matches while no item of the session is still
// in_room and the counters add up to total_items_in, so a finalized row is
// always internally consistent. It returns the number of rows changed.
func FinalizeSession(ctx context.Context, db *gorm.DB, storeID, id string, outcome domain.SessionStatus, c domain.SessionCounts, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, domain.SessionExiting).
		Where("total_items_in = ?", c.Resolved()).
		Where("NOT EXISTS (SELECT 1 FROM session_items si WHERE si.session_id = sessions.id AND si.status = ?)", domain.ItemInRoom).
		Updates(map[string]any{
			"status":             outcome,
			"total_items_out":    c.TotalItemsOut,
			"items_purchased":    c.ItemsPurchased,
			"items_restocked":    c.ItemsRestocked,
			"items_lost":         c.ItemsLost,
			"exit_complete_time": now,
			"updated_at":         now,
		})
	return res.RowsAffected, res.Error
}

// DeleteSession hard-deletes a session. Items and the basket go with it
// through ON DELETE CASCADE.
func DeleteSession(ctx context.Context, db *gorm.DB, storeID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		Delete(&domain.Session{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOpenSessionsBefore returns open sessions that entered before cutoff,
// oldest first.
func ListOpenSessionsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Session, error) {
	var out []domain.Session
	q := db.WithContext(ctx).
		Where("status IN ? AND entry_time < ?", domain.OpenSessionStatuses, cutoff).
		Order("entry_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
