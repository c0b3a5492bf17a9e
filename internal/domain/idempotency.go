package domain

import "time"

// Idempotency remembers which item a resolution call consumed, keyed by
// (actor, session, Idempotency-Key). A scanner that retries after a dropped
// response gets the first call's item back instead of a state error.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ActorID   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idempotency_key,priority:1"`
	SessionID string    `gorm:"type:char(36);not null;uniqueIndex:ux_idempotency_key,priority:2"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idempotency_key,priority:3"`
	ItemID    string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
