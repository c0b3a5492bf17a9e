// Back-of-house HTTP handlers.
//
//   - GET  /back-of-house                  (restock queue, oldest first)
//   - GET  /back-of-house/count            (entries awaiting return)
//   - POST /back-of-house/{id}/return      (item is back on the floor)
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

// ListBackOfHouseResponse wraps a page of the restock queue.
type ListBackOfHouseResponse struct {
	Entries    []services.BackOfHouseView `json:"entries"`
	Pagination Pagination                 `json:"pagination"`
}

// CountResponse carries a single count.
type CountResponse struct {
	Count int64 `json:"count" example:"3"`
}

// ListBackOfHouse godoc
// @ID          listBackOfHouse
// @Summary     List the restock queue
// @Description Lists queue entries oldest first with their urgency (normal under 30 minutes, warning from 30, critical from 60). Defaults to entries awaiting return.
// @Tags        BackOfHouse
// @Produce     json
//
// @Param       X-Actor-ID     header  string  true   "Team member id"
// @Param       X-Store-ID     header  string  true   "Store id"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       status         query   string  false  "awaiting_return|returned|all"  default(awaiting_return)
// @Param       session_id     query   string  false  "Only entries of this session"
// @Param       min_wait       query   int     false  "Minimum wait in minutes"  minimum(0)
// @Param       urgency        query   string  false  "normal|warning|critical"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListBackOfHouseResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad filter"
// @Router      /back-of-house [get]
func (h *Handlers) ListBackOfHouse(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)

	f := services.BackOfHouseFilter{
		Status:    domain.BackOfHouseAwaiting,
		SessionID: strings.TrimSpace(c.Query("session_id")),
	}
	switch st := strings.TrimSpace(c.Query("status")); st {
	case "", string(domain.BackOfHouseAwaiting):
	case string(domain.BackOfHouseReturned):
		f.Status = domain.BackOfHouseReturned
	case "all":
		f.Status = ""
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}
	if raw := strings.TrimSpace(c.Query("min_wait")); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "min_wait must be a non-negative number of minutes")
			return
		}
		f.MinWait = time.Duration(m) * time.Minute
	}
	if raw := strings.TrimSpace(c.Query("urgency")); raw != "" {
		u, valid := domain.ParseUrgency(raw)
		if !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrInvalidUrgency.Error())
			return
		}
		f.Urgency = u
	}

	if h.db != nil {
		if count, maxTS, err := repo.BackOfHouseStats(ctx, h.db, a.StoreID); err == nil {
			// Urgency bands move with the clock.
			if notModified(c, "boh:"+a.StoreID, count, maxTS, h.now().Truncate(time.Minute).String()) {
				return
			}
		}
	}

	page, pageSize := clampPagination(c)
	list, total, err := h.boh.List(ctx, a, f, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListBackOfHouseResponse{Entries: list, Pagination: newPagination(page, pageSize, total)})
}

// CountBackOfHouse godoc
// @ID          countBackOfHouse
// @Summary     Count entries awaiting return
// @Tags        BackOfHouse
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Success     200  {object}  handlers.CountResponse
// @Router      /back-of-house/count [get]
func (h *Handlers) CountBackOfHouse(c *gin.Context) {
	n, err := h.boh.CountAwaiting(c.Request.Context(), actor(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// MarkReturned godoc
// @ID          markReturned
// @Summary     Mark an entry returned to the floor
// @Tags        BackOfHouse
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Entry id"  format(uuid)
// @Success     200  {object}  domain.BackOfHouseEntry
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already returned"
// @Router      /back-of-house/{id}/return [post]
func (h *Handlers) MarkReturned(c *gin.Context) {
	e, err := h.boh.MarkReturned(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, e)
}
