package domain

import "time"

// ItemStatus is the reconciliation state of one garment instance.
type ItemStatus string

const (
	ItemInRoom    ItemStatus = "in_room"
	ItemPurchased ItemStatus = "purchased"
	ItemRestocked ItemStatus = "restocked"
	ItemLost      ItemStatus = "lost"
)

// IsResolved reports whether the item has left in_room.
func (s ItemStatus) IsResolved() bool {
	return s == ItemPurchased || s == ItemRestocked || s == ItemLost
}

// ParseItemOutcome validates a resolution outcome.
func ParseItemOutcome(s string) (ItemStatus, bool) {
	switch st := ItemStatus(s); st {
	case ItemPurchased, ItemRestocked, ItemLost:
		return st, true
	default:
		return "", false
	}
}

// Item represents a single scanned garment within one session. Barcodes are
// not unique: duplicates in a session are legal and only distinguishable by
// ID. Items are ordered by ScannedInAt (and by Seq for identical timestamps)
// when resolving duplicates first-in first-out.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: owning session (cascade delete).
//   - Seq: monotonically increasing insertion order, FIFO tie-break.
//   - Barcode: garment barcode as scanned (normalized).
//   - Status: in_room | purchased | restocked | lost.
//   - ScannedInAt: entry scan time.
//   - ResolvedAt: set exactly when Status leaves in_room.
//   - ResolvedBy: actor that recorded the outcome.
//   - BasketID: basket the item is attached to once purchased.
type Item struct {
	ID          string     `json:"id"                    gorm:"type:char(36);primaryKey"`
	SessionID   string     `json:"session_id"            gorm:"type:char(36);not null;index:idx_items_session_barcode,priority:1;index:idx_items_session_scan,priority:1"`
	Seq         int64      `json:"-"                     gorm:"not null;index:idx_items_session_scan,priority:3"`
	Barcode     string     `json:"barcode"               gorm:"type:varchar(128);not null;index:idx_items_session_barcode,priority:2"`
	Status      ItemStatus `json:"status"                gorm:"type:varchar(16);not null;default:'in_room';check:status IN ('in_room','purchased','restocked','lost')"`
	ScannedInAt time.Time  `json:"scanned_in_at"         gorm:"not null;index:idx_items_session_scan,priority:2"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  *string    `json:"resolved_by,omitempty" gorm:"type:varchar(64)"`
	BasketID    *string    `json:"basket_id,omitempty"   gorm:"type:char(36);index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Session is the parent visit. Items are cascade-deleted with it.
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "session_items" }
