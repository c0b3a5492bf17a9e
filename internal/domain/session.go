// Package domain defines the persistence models for changing-room sessions,
// the items carried into them, and the downstream records produced when
// those items are reconciled (baskets, back-of-house entries, shrinkage).
// These types are mapped with GORM and form the core data layer of the
// application.
package domain

import "time"

// SessionStatus is the lifecycle state of a changing-room visit.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionExiting    SessionStatus = "exiting"
	SessionComplete   SessionStatus = "complete"
	SessionFlagged    SessionStatus = "flagged"
)

// OpenSessionStatuses lists the statuses that occupy a tag.
var OpenSessionStatuses = []SessionStatus{SessionInProgress, SessionExiting}

// IsOpen reports whether the status still holds the physical tag.
func (s SessionStatus) IsOpen() bool {
	return s == SessionInProgress || s == SessionExiting
}

// IsTerminal reports whether the status is complete or flagged.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionComplete || s == SessionFlagged
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// Allowed: in_progress → exiting → {complete, flagged}.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionInProgress:
		return next == SessionExiting
	case SessionExiting:
		return next == SessionComplete || next == SessionFlagged
	default:
		return false
	}
}

// Session represents one tag-identified changing-room visit.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - StoreID: owning store; every query is store scoped.
//   - TeamMemberID: actor who opened the session.
//   - Tag: the physical tag barcode. At most one open session per
//     (store_id, tag), enforced by the partial unique index
//     ux_sessions_open_tag created in repo.AutoMigrate.
//   - Status: in_progress | exiting | complete | flagged (forward only).
//   - TotalItemsIn .. ItemsLost: aggregate counters. Once finalized,
//     TotalItemsIn == ItemsPurchased + ItemsRestocked + ItemsLost.
//   - ItemSeq: last entry-scan sequence handed to an item; never decreases.
//   - EntryTime / ExitStartTime / ExitCompleteTime: lifecycle timestamps.
//   - DiscrepancyAt: set when an exit is finished with items still in the
//     room. From then on the session closes itself once the last item is
//     resolved.
type Session struct {
	ID               string        `json:"id"                 gorm:"type:char(36);primaryKey"`
	StoreID          string        `json:"store_id"           gorm:"type:varchar(64);not null;index:idx_sessions_store_entry,priority:1"`
	TeamMemberID     string        `json:"team_member_id"     gorm:"type:varchar(64);not null;index"`
	Tag              string        `json:"tag"                gorm:"type:varchar(64);not null;index"`
	Status           SessionStatus `json:"status"             gorm:"type:varchar(16);not null;default:'in_progress';check:status IN ('in_progress','exiting','complete','flagged')"`
	TotalItemsIn     int           `json:"total_items_in"     gorm:"not null;default:0"`
	TotalItemsOut    int           `json:"total_items_out"    gorm:"not null;default:0"`
	ItemsPurchased   int           `json:"items_purchased"    gorm:"not null;default:0"`
	ItemsRestocked   int           `json:"items_restocked"    gorm:"not null;default:0"`
	ItemsLost        int           `json:"items_lost"         gorm:"not null;default:0"`
	ItemSeq          int64         `json:"-"                  gorm:"not null;default:0"`
	EntryTime        time.Time     `json:"entry_time"         gorm:"not null;index:idx_sessions_store_entry,priority:2"`
	ExitStartTime    *time.Time    `json:"exit_start_time,omitempty"`
	ExitCompleteTime *time.Time    `json:"exit_complete_time,omitempty"`
	DiscrepancyAt    *time.Time    `json:"discrepancy_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// IsStale reports whether an open session has been in the room longer than
// maxAge at now. Closed sessions are never stale.
func (s Session) IsStale(now time.Time, maxAge time.Duration) bool {
	if !s.Status.IsOpen() || maxAge <= 0 {
		return false
	}
	return now.Sub(s.EntryTime) > maxAge
}

// SessionCounts carries the final counters written when a session closes.
type SessionCounts struct {
	TotalItemsOut  int `json:"total_items_out"`
	ItemsPurchased int `json:"items_purchased"`
	ItemsRestocked int `json:"items_restocked"`
	ItemsLost      int `json:"items_lost"`
}

// Resolved returns the number of items accounted for by the counters.
func (c SessionCounts) Resolved() int {
	return c.ItemsPurchased + c.ItemsRestocked + c.ItemsLost
}
