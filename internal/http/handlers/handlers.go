// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers consume, the
// Handlers wiring, and helpers shared by every endpoint: actor resolution,
// pagination, weak ETags, and the mapping of service errors to HTTP.
package handlers

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/http/middleware"
	"github.com/tbourn/go-changingroom-backend/internal/services"
	"github.com/tbourn/go-changingroom-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService covers the session ledger: opening a tag, the entry
// manifest, lookups and administrative delete.
type SessionService interface {
	Open(ctx context.Context, actor domain.Actor, tag string) (*domain.Session, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Session, error)
	List(ctx context.Context, actor domain.Actor, f services.SessionFilter, page, pageSize int) ([]domain.Session, int64, error)
	LookupOpenByTag(ctx context.Context, actor domain.Actor, tag string) (*domain.Session, error)
	RecordEntryItem(ctx context.Context, actor domain.Actor, sessionID, barcode string) (*domain.Item, error)
	RemoveEntryItem(ctx context.Context, actor domain.Actor, sessionID, itemID string) error
	Delete(ctx context.Context, actor domain.Actor, id string) error
}

// ItemService lists the items of a session. Callers check the session's
// store first.
type ItemService interface {
	List(ctx context.Context, sessionID string) ([]domain.Item, error)
}

// ReconcileService drives the exit flow and its discrepancy sub-flow.
type ReconcileService interface {
	StartExit(ctx context.Context, actor domain.Actor, tag string) (*services.ExitView, error)
	ResumeExit(ctx context.Context, actor domain.Actor, sessionID string) (*services.ExitView, error)
	ExitState(ctx context.Context, actor domain.Actor, sessionID string) (*services.ExitView, error)
	Scan(ctx context.Context, actor domain.Actor, sessionID, barcode string) (*services.ScanMatch, error)
	Resolve(ctx context.Context, actor domain.Actor, sessionID, itemID string, outcome domain.ItemStatus) (*services.ResolveResult, error)
	ScanAndResolve(ctx context.Context, actor domain.Actor, sessionID, barcode string, outcome domain.ItemStatus) (*services.ResolveResult, error)
	Finish(ctx context.Context, actor domain.Actor, sessionID string) (*services.ExitView, error)
	LateScan(ctx context.Context, actor domain.Actor, sessionID, itemID, barcode string, outcome domain.ItemStatus) (*services.ResolveResult, error)
	MarkLost(ctx context.Context, actor domain.Actor, sessionID, itemID, notes string) (*services.ResolveResult, error)
	Replay(ctx context.Context, actor domain.Actor, sessionID, itemID string) (*services.ResolveResult, error)
}

// BasketService covers basket lookups and dispositions.
type BasketService interface {
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Basket, error)
	GetBySession(ctx context.Context, actor domain.Actor, sessionID string) (*domain.Basket, error)
	ListActive(ctx context.Context, actor domain.Actor, page, pageSize int) ([]domain.Basket, int64, error)
	SetDisposition(ctx context.Context, actor domain.Actor, id string, disposition domain.BasketStatus) (*domain.Basket, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
}

// BackOfHouseService covers the restock queue.
type BackOfHouseService interface {
	List(ctx context.Context, actor domain.Actor, f services.BackOfHouseFilter, page, pageSize int) ([]services.BackOfHouseView, int64, error)
	CountAwaiting(ctx context.Context, actor domain.Actor) (int64, error)
	MarkReturned(ctx context.Context, actor domain.Actor, id string) (*domain.BackOfHouseEntry, error)
}

// ShrinkageService covers the loss-prevention log.
type ShrinkageService interface {
	List(ctx context.Context, actor domain.Actor, f services.ShrinkageFilter, page, pageSize int) ([]domain.ShrinkageEntry, int64, error)
	CountLost(ctx context.Context, actor domain.Actor, from, to *time.Time) (int64, error)
	FindLostByBarcode(ctx context.Context, actor domain.Actor, barcode string) (*domain.ShrinkageEntry, error)
	Recover(ctx context.Context, actor domain.Actor, id string) (*domain.ShrinkageEntry, error)
}

//
// Handler wiring
//

// Services bundles the service dependencies of Handlers.
type Services struct {
	Sessions    SessionService
	Items       ItemService
	Reconcile   ReconcileService
	Baskets     BasketService
	BackOfHouse BackOfHouseService
	Shrinkage   ShrinkageService
}

// Options carries transport-level settings.
type Options struct {
	// DB backs ETag statistics and idempotency records. Both are skipped
	// when nil.
	DB *gorm.DB
	// IdempotencyTTL is how long a stored resolution can be replayed.
	IdempotencyTTL time.Duration
	// StaleAfter marks open sessions older than this as stale in listings.
	StaleAfter time.Duration
	// Now is the clock for date presets and staleness.
	Now func() time.Time
}

// Handlers groups the HTTP endpoints of the changing-room API.
type Handlers struct {
	sessions  SessionService
	items     ItemService
	reconcile ReconcileService
	baskets   BasketService
	boh       BackOfHouseService
	shrinkage ShrinkageService

	db         *gorm.DB
	idemTTL    time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// New constructs a Handlers bound to svc.
func New(svc Services, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Handlers{
		sessions:   svc.Sessions,
		items:      svc.Items,
		reconcile:  svc.Reconcile,
		baskets:    svc.Baskets,
		boh:        svc.BackOfHouse,
		shrinkage:  svc.Shrinkage,
		db:         opts.DB,
		idemTTL:    opts.IdempotencyTTL,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
	}
}

// actor returns the identity set by middleware.Identity. Without the
// middleware (unit tests) it reads the identity headers directly.
func actor(c *gin.Context) domain.Actor {
	if a, ok := middleware.ActorFrom(c); ok {
		return a
	}
	return domain.Actor{
		ID:      strings.TrimSpace(c.GetHeader(middleware.HeaderActorID)),
		StoreID: strings.TrimSpace(c.GetHeader(middleware.HeaderStoreID)),
		Role:    strings.TrimSpace(c.GetHeader(middleware.HeaderActorRole)),
	}
}

//
// Pagination
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := utils.NewPage(page, pageSize).Pages(total)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// clampPagination reads page and page_size, bounded by utils.NewPage.
func clampPagination(c *gin.Context) (page, pageSize int) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"))
	return p.Number, p.Size
}

// timeRange reads period (today|yesterday|7days|30days) or explicit from/to
// query params. An explicit bound overrides the preset's.
func (h *Handlers) timeRange(c *gin.Context) (from, to *time.Time, err error) {
	pf, pt, err := utils.PeriodRange(c.Query("period"), h.now())
	if err != nil {
		return nil, nil, err
	}
	if !pf.IsZero() {
		from, to = &pf, &pt
	}
	if f, err := utils.ParseTimeParam(c.Query("from")); err != nil {
		return nil, nil, fmt.Errorf("from: %w", err)
	} else if f != nil {
		from = f
	}
	if t, err := utils.ParseTimeParam(c.Query("to")); err != nil {
		return nil, nil, fmt.Errorf("to: %w", err)
	} else if t != nil {
		to = t
	}
	return from, to, nil
}

//
// Conditional responses
//

// notModified sets a weak ETag built from a collection's row count, latest
// update and the request's query, and writes 304 when If-None-Match matches.
// extra lets callers fold in read-time inputs (such as the current minute
// for wait-based urgency).
func notModified(c *gin.Context, scope string, count int64, maxTS *time.Time, extra string) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	q := fnv.New32a()
	_, _ = q.Write([]byte(c.Request.URL.RawQuery + "|" + extra))
	etag := fmt.Sprintf(`W/"%s:%d:%d:%x"`, scope, count, ts, q.Sum32())
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
