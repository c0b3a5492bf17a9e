// Session HTTP handlers.
//
// This file exposes the session ledger:
//   - POST   /sessions                        (open a session for a tag)
//   - GET    /sessions                        (list, filters, ETag support)
//   - GET    /sessions/{id}                   (get one)
//   - DELETE /sessions/{id}                   (remove an erroneous session)
//   - GET    /tags/{tag}/session              (open session holding a tag)
//   - GET    /sessions/{id}/items             (entry manifest)
//   - POST   /sessions/{id}/items             (record an entry scan)
//   - DELETE /sessions/{id}/items/{itemId}    (undo an entry scan)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

//
// DTOs
//

// OpenSessionRequest is the payload for opening a session.
type OpenSessionRequest struct {
	// Tag is the scanned or typed physical tag.
	Tag string `json:"tag" binding:"required" example:"042"`
}

// RecordItemRequest is the payload for an entry scan.
type RecordItemRequest struct {
	Barcode string `json:"barcode" binding:"required" example:"SKU1"`
}

// SessionView is a session annotated with read-time staleness.
type SessionView struct {
	domain.Session
	// Stale is true for open sessions older than the configured limit.
	Stale bool `json:"stale"`
}

// ListSessionsResponse wraps a page of sessions and pagination information.
type ListSessionsResponse struct {
	Sessions   []SessionView `json:"sessions"`
	Pagination Pagination    `json:"pagination"`
}

// ListItemsResponse lists the items of one session.
type ListItemsResponse struct {
	Items []domain.Item `json:"items"`
}

func (h *Handlers) sessionView(s domain.Session) SessionView {
	return SessionView{Session: s, Stale: s.IsStale(h.now(), h.staleAfter)}
}

// parseStatuses reads a comma-separated status filter.
func parseStatuses(raw string) ([]domain.SessionStatus, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	var out []domain.SessionStatus
	for _, p := range strings.Split(raw, ",") {
		st := domain.SessionStatus(strings.TrimSpace(p))
		switch st {
		case domain.SessionInProgress, domain.SessionExiting, domain.SessionComplete, domain.SessionFlagged:
			out = append(out, st)
		case "open":
			out = append(out, domain.OpenSessionStatuses...)
		default:
			return nil, false
		}
	}
	return out, true
}

//
// Handlers
//

// OpenSession godoc
// @ID          openSession
// @Summary     Open a session
// @Description Opens a changing-room session for a physical tag. A tag can hold only one open session per store.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-Actor-ID  header  string  true  "Team member id"  example(tm-1)
// @Param       X-Store-ID  header  string  true  "Store id"        example(store-1)
// @Param       body        body    handlers.OpenSessionRequest  true  "Tag"
//
// @Success     201  {object}  domain.Session
// @Failure     400  {object}  handlers.ErrorResponse  "Blank or malformed tag"
// @Failure     409  {object}  handlers.ErrorResponse  "Tag already in use"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tag required")
		return
	}
	s, err := h.sessions.Open(c.Request.Context(), actor(c), req.Tag)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, s)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions (paginated)
// @Description Lists the store's sessions, newest first. Supports weak ETag via If-None-Match.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-Actor-ID     header  string  true   "Team member id"
// @Param       X-Store-ID     header  string  true   "Store id"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       status         query   string  false  "Comma-separated statuses (in_progress,exiting,complete,flagged,open)"
// @Param       tag            query   string  false  "Tag"
// @Param       period         query   string  false  "today|yesterday|7days|30days"
// @Param       from           query   string  false  "Entry time lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param       to             query   string  false  "Entry time upper bound, exclusive"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListSessionsResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)

	statuses, valid := parseStatuses(c.Query("status"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}
	from, to, err := h.timeRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if h.db != nil {
		if count, maxTS, err := repo.SessionsStats(ctx, h.db, a.StoreID); err == nil {
			// Staleness moves with the clock.
			if notModified(c, "sessions:"+a.StoreID, count, maxTS, h.now().Truncate(time.Minute).String()) {
				return
			}
		}
	}

	page, pageSize := clampPagination(c)
	f := services.SessionFilter{Statuses: statuses, Tag: strings.TrimSpace(c.Query("tag")), From: from, To: to}
	list, total, err := h.sessions.List(ctx, a, f, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	views := make([]SessionView, 0, len(list))
	for _, s := range list {
		views = append(views, h.sessionView(s))
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: views, Pagination: newPagination(page, pageSize, total)})
}

// GetSession godoc
// @ID          getSession
// @Summary     Get a session
// @Tags        Sessions
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Success     200  {object}  handlers.SessionView
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /sessions/{id} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, h.sessionView(*s))
}

// DeleteSession godoc
// @ID          deleteSession
// @Summary     Delete a session
// @Description Removes an erroneous session and its items. Back-of-house and shrinkage records are kept.
// @Tags        Sessions
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /sessions/{id} [delete]
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// LookupTag godoc
// @ID          lookupTag
// @Summary     Find the open session for a tag
// @Tags        Sessions
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       tag         path    string  true  "Tag"  example(042)
// @Success     200  {object}  handlers.SessionView
// @Failure     404  {object}  handlers.ErrorResponse  "Tag is free"
// @Router      /tags/{tag}/session [get]
func (h *Handlers) LookupTag(c *gin.Context) {
	s, err := h.sessions.LookupOpenByTag(c.Request.Context(), actor(c), c.Param("tag"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if s == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no active session for tag")
		return
	}
	ok(c, http.StatusOK, h.sessionView(*s))
}

// ListSessionItems godoc
// @ID          listSessionItems
// @Summary     List the items of a session
// @Tags        Sessions
// @Produce     json
// @Param       X-Actor-ID     header  string  true   "Team member id"
// @Param       X-Store-ID     header  string  true   "Store id"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       id             path    string  true   "Session id"  format(uuid)
// @Success     200  {object}  handlers.ListItemsResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /sessions/{id}/items [get]
func (h *Handlers) ListSessionItems(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.sessions.Get(ctx, actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if h.db != nil {
		if count, maxTS, err := repo.ItemsStats(ctx, h.db, s.ID); err == nil {
			if notModified(c, "items:"+s.ID, count, maxTS, "") {
				return
			}
		}
	}
	items, err := h.items.List(ctx, s.ID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListItemsResponse{Items: items})
}

// RecordItem godoc
// @ID          recordItem
// @Summary     Record an entry scan
// @Description Adds one garment to an in-progress session. Duplicate barcodes are separate items.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Param       body        body    handlers.RecordItemRequest  true  "Barcode"
// @Success     201  {object}  domain.Item
// @Failure     400  {object}  handlers.ErrorResponse  "Blank barcode"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Session is no longer in progress"
// @Router      /sessions/{id}/items [post]
func (h *Handlers) RecordItem(c *gin.Context) {
	var req RecordItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "barcode required")
		return
	}
	it, err := h.sessions.RecordEntryItem(c.Request.Context(), actor(c), c.Param("id"), req.Barcode)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, it)
}

// RemoveItem godoc
// @ID          removeItem
// @Summary     Undo an entry scan
// @Tags        Sessions
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Param       itemId      path    string  true  "Item id"     format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Session or item not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Session is no longer in progress"
// @Router      /sessions/{id}/items/{itemId} [delete]
func (h *Handlers) RemoveItem(c *gin.Context) {
	if err := h.sessions.RemoveEntryItem(c.Request.Context(), actor(c), c.Param("id"), c.Param("itemId")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
