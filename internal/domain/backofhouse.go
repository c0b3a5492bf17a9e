package domain

import "time"

// BackOfHouseStatus tracks a restocked item until it is back on the floor.
type BackOfHouseStatus string

const (
	BackOfHouseAwaiting BackOfHouseStatus = "awaiting_return"
	BackOfHouseReturned BackOfHouseStatus = "returned"
)

// Urgency is the display category derived from how long an item has waited.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// Urgency thresholds. They are only ever applied at read time.
const (
	UrgencyWarningAfter  = 30 * time.Minute
	UrgencyCriticalAfter = 60 * time.Minute
)

// ParseUrgency validates an urgency filter value.
func ParseUrgency(s string) (Urgency, bool) {
	switch u := Urgency(s); u {
	case UrgencyNormal, UrgencyWarning, UrgencyCritical:
		return u, true
	default:
		return "", false
	}
}

// UrgencyOf classifies the wait between receivedAt and now.
// Below 30 minutes is normal, 30 to 60 minutes is warning, 60 or more is
// critical. Waits are truncated to whole minutes first.
func UrgencyOf(receivedAt, now time.Time) Urgency {
	wait := now.Sub(receivedAt).Truncate(time.Minute)
	switch {
	case wait >= UrgencyCriticalAfter:
		return UrgencyCritical
	case wait >= UrgencyWarningAfter:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// BackOfHouseEntry is a restocked item awaiting physical return.
type BackOfHouseEntry struct {
	ID           string            `json:"id"                    gorm:"type:char(36);primaryKey"`
	StoreID      string            `json:"store_id"              gorm:"type:varchar(64);not null;index:idx_boh_store_status,priority:1"`
	SessionID    string            `json:"session_id"            gorm:"type:char(36);not null;index"`
	Barcode      string            `json:"barcode"               gorm:"type:varchar(128);not null"`
	TeamMemberID string            `json:"team_member_id"        gorm:"type:varchar(64);not null"`
	Status       BackOfHouseStatus `json:"status"                gorm:"type:varchar(16);not null;default:'awaiting_return';check:status IN ('awaiting_return','returned');index:idx_boh_store_status,priority:2"`
	ReceivedAt   time.Time         `json:"received_at"           gorm:"not null;index"`
	ReturnedAt   *time.Time        `json:"returned_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TableName returns the database table name for BackOfHouseEntry.
func (BackOfHouseEntry) TableName() string { return "back_of_house" }

// UrgencyAt is UrgencyOf applied to this entry.
func (e BackOfHouseEntry) UrgencyAt(now time.Time) Urgency {
	return UrgencyOf(e.ReceivedAt, now)
}
