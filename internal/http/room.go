package httpapi

import (
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/config"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

// Room bundles the services of one deployment. The server mounts them
// behind the API; roomctl and the janitor call them directly.
type Room struct {
	Sessions    *services.SessionService
	Items       *services.ItemService
	Baskets     *services.BasketService
	BackOfHouse *services.BackOfHouseService
	Shrinkage   *services.ShrinkageService
	Reconcile   *services.ReconcileService
}

// NewRoom builds the service graph. A nil cache disables the open-session
// projection.
func NewRoom(db *gorm.DB, cache services.SessionCache, cfg config.Config) *Room {
	policy := scan.Policy{Strict: cfg.StrictScanFormat}

	sessions := services.NewSessionService(db)
	sessions.Scan = policy
	if cache != nil {
		sessions.Cache = cache
	}
	boh := services.NewBackOfHouseService(db, repo.BackOfHouseStore{})
	boh.Scan = policy
	items := services.NewItemService(db)
	items.Scan = policy

	return &Room{
		Sessions:    sessions,
		Items:       items,
		Baskets:     services.NewBasketService(db),
		BackOfHouse: boh,
		Shrinkage:   services.NewShrinkageService(db, repo.ShrinkageStore{}),
		Reconcile:   services.NewReconcileService(db, sessions),
	}
}
