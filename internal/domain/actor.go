package domain

import "strings"

// Actor is the identity supplied with every mutating call. It is trusted as
// given; authentication happens upstream.
type Actor struct {
	ID      string `json:"actor_id"`
	StoreID string `json:"store_id"`
	Role    string `json:"role,omitempty"`
}

// Valid reports whether the actor carries both an id and a store.
func (a Actor) Valid() bool {
	return strings.TrimSpace(a.ID) != "" && strings.TrimSpace(a.StoreID) != ""
}
