package domain

import "time"

// ShrinkageStatus records whether a lost item was later found.
type ShrinkageStatus string

const (
	ShrinkageLost      ShrinkageStatus = "lost"
	ShrinkageRecovered ShrinkageStatus = "recovered"
)

// ShrinkageEntry is a loss-prevention record for an item marked lost.
// Recovering an entry never reopens the item or the session it came from.
type ShrinkageEntry struct {
	ID           string          `json:"id"                     gorm:"type:char(36);primaryKey"`
	StoreID      string          `json:"store_id"               gorm:"type:varchar(64);not null;index:idx_shrinkage_store_status,priority:1"`
	SessionID    string          `json:"session_id"             gorm:"type:char(36);not null;index"`
	Barcode      string          `json:"barcode"                gorm:"type:varchar(128);not null;index"`
	TeamMemberID string          `json:"team_member_id"         gorm:"type:varchar(64);not null"`
	Status       ShrinkageStatus `json:"status"                 gorm:"type:varchar(16);not null;default:'lost';check:status IN ('lost','recovered');index:idx_shrinkage_store_status,priority:2"`
	LostAt       time.Time       `json:"lost_at"                gorm:"not null;index"`
	RecoveredAt  *time.Time      `json:"recovered_at,omitempty"`
	Notes        string          `json:"notes,omitempty"        gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName returns the database table name for ShrinkageEntry.
func (ShrinkageEntry) TableName() string { return "shrinkage_log" }
