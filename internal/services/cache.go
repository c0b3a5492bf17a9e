package services

import (
	"context"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// SessionCache is a read-through projection of open sessions keyed by
// (store, tag). It is never consulted for invariant checks; every mutation
// of a session invalidates its entry.
//
// Each (store, tag) carries a generation that Invalidate advances. A reader
// takes the generation before its database read and passes it to
// SetOpenByTag, which only stores the row if no invalidation happened in
// between, so a slow read cannot re-cache a session that was just closed.
type SessionCache interface {
	GetOpenByTag(ctx context.Context, storeID, tag string) (*domain.Session, bool)
	Generation(ctx context.Context, storeID, tag string) (gen uint64, ok bool)
	SetOpenByTag(ctx context.Context, s *domain.Session, gen uint64)
	Invalidate(ctx context.Context, storeID, tag string)
}

// NopSessionCache disables caching.
type NopSessionCache struct{}

func (NopSessionCache) GetOpenByTag(context.Context, string, string) (*domain.Session, bool) {
	return nil, false
}

func (NopSessionCache) Generation(context.Context, string, string) (uint64, bool) { return 0, false }

func (NopSessionCache) SetOpenByTag(context.Context, *domain.Session, uint64) {}

func (NopSessionCache) Invalidate(context.Context, string, string) {}
