package domain

import "time"

// BasketStatus is the checkout disposition of a basket.
type BasketStatus string

const (
	BasketActive      BasketStatus = "active"
	BasketAbandoned   BasketStatus = "abandoned"
	BasketTransferred BasketStatus = "transferred"
)

// ParseBasketDisposition accepts only the terminal dispositions.
func ParseBasketDisposition(s string) (BasketStatus, bool) {
	switch st := BasketStatus(s); st {
	case BasketAbandoned, BasketTransferred:
		return st, true
	default:
		return "", false
	}
}

// Basket groups the purchased items of one session. It is created lazily on
// the first purchase resolution. BasketNumber is store scoped and allocated
// from BasketSequence in a single atomic statement.
//
// Fields:
//   - ID: UUID primary key.
//   - StoreID / BasketNumber: unique pair (ux_baskets_store_number).
//   - SessionID: owning session, unique (one basket per session).
//   - Status: active | abandoned | transferred. Non-active is terminal.
//   - ResolvedAt: set together with a terminal status.
type Basket struct {
	ID           string       `json:"id"                    gorm:"type:char(36);primaryKey"`
	StoreID      string       `json:"store_id"              gorm:"type:varchar(64);not null;uniqueIndex:ux_baskets_store_number,priority:1"`
	BasketNumber int64        `json:"basket_number"         gorm:"not null;uniqueIndex:ux_baskets_store_number,priority:2"`
	SessionID    string       `json:"session_id"            gorm:"type:char(36);not null;uniqueIndex:ux_baskets_session"`
	Status       BasketStatus `json:"status"                gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','abandoned','transferred');index"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	Session Session `json:"-"               gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Items   []Item  `json:"items,omitempty" gorm:"-"`
}

// TableName returns the database table name for Basket.
func (Basket) TableName() string { return "baskets" }

// BasketSequence holds the last basket number issued per store.
type BasketSequence struct {
	StoreID    string `gorm:"type:varchar(64);primaryKey"`
	LastNumber int64  `gorm:"not null;default:0"`
}

// TableName returns the database table name for BasketSequence.
func (BasketSequence) TableName() string { return "basket_sequences" }
