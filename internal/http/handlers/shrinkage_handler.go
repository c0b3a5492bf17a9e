// Shrinkage HTTP handlers.
//
//   - GET  /shrinkage                 (loss log, newest first)
//   - GET  /shrinkage/count           (still-lost entries in a period)
//   - GET  /shrinkage/lookup          (latest lost entry for a barcode)
//   - POST /shrinkage/{id}/recover    (garment was found)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

// ListShrinkageResponse wraps a page of the shrinkage log.
type ListShrinkageResponse struct {
	Entries    []domain.ShrinkageEntry `json:"entries"`
	Pagination Pagination              `json:"pagination"`
}

// ListShrinkage godoc
// @ID          listShrinkage
// @Summary     List the shrinkage log
// @Tags        Shrinkage
// @Produce     json
//
// @Param       X-Actor-ID  header  string  true   "Team member id"
// @Param       X-Store-ID  header  string  true   "Store id"
// @Param       status      query   string  false  "lost|recovered"
// @Param       barcode     query   string  false  "Barcode"
// @Param       period      query   string  false  "today|yesterday|7days|30days"
// @Param       from        query   string  false  "Lost-at lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param       to          query   string  false  "Lost-at upper bound, exclusive"
// @Param       page        query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size   query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListShrinkageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad filter"
// @Router      /shrinkage [get]
func (h *Handlers) ListShrinkage(c *gin.Context) {
	f := services.ShrinkageFilter{Barcode: strings.TrimSpace(c.Query("barcode"))}
	switch st := domain.ShrinkageStatus(strings.TrimSpace(c.Query("status"))); st {
	case "", domain.ShrinkageLost, domain.ShrinkageRecovered:
		f.Status = st
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}
	from, to, err := h.timeRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	f.From, f.To = from, to

	page, pageSize := clampPagination(c)
	list, total, err := h.shrinkage.List(c.Request.Context(), actor(c), f, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListShrinkageResponse{Entries: list, Pagination: newPagination(page, pageSize, total)})
}

// CountShrinkage godoc
// @ID          countShrinkage
// @Summary     Count still-lost items
// @Tags        Shrinkage
// @Produce     json
// @Param       X-Actor-ID  header  string  true   "Team member id"
// @Param       X-Store-ID  header  string  true   "Store id"
// @Param       period      query   string  false  "today|yesterday|7days|30days"
// @Param       from        query   string  false  "Lost-at lower bound"
// @Param       to          query   string  false  "Lost-at upper bound, exclusive"
// @Success     200  {object}  handlers.CountResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad period"
// @Router      /shrinkage/count [get]
func (h *Handlers) CountShrinkage(c *gin.Context) {
	from, to, err := h.timeRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	n, err := h.shrinkage.CountLost(c.Request.Context(), actor(c), from, to)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// LookupShrinkage godoc
// @ID          lookupShrinkage
// @Summary     Find a lost item by barcode
// @Description Returns the most recent still-lost entry for the barcode.
// @Tags        Shrinkage
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       barcode     query   string  true  "Barcode"
// @Success     200  {object}  domain.ShrinkageEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Blank barcode"
// @Failure     404  {object}  handlers.ErrorResponse  "No lost entry for barcode"
// @Router      /shrinkage/lookup [get]
func (h *Handlers) LookupShrinkage(c *gin.Context) {
	e, err := h.shrinkage.FindLostByBarcode(c.Request.Context(), actor(c), c.Query("barcode"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if e == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no lost entry for barcode")
		return
	}
	ok(c, http.StatusOK, e)
}

// RecoverShrinkage godoc
// @ID          recoverShrinkage
// @Summary     Mark a lost item recovered
// @Description Marks the entry recovered. The original session and item are not changed.
// @Tags        Shrinkage
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Entry id"  format(uuid)
// @Success     200  {object}  domain.ShrinkageEntry
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already recovered"
// @Router      /shrinkage/{id}/recover [post]
func (h *Handlers) RecoverShrinkage(c *gin.Context) {
	e, err := h.shrinkage.Recover(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, e)
}
