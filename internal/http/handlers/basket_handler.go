// Basket HTTP handlers.
//
//   - GET    /baskets                        (active baskets, paginated)
//   - GET    /baskets/{id}                   (one basket with items)
//   - POST   /baskets/{id}/disposition       (abandoned | transferred)
//   - DELETE /baskets/{id}                   (remove a resolved basket)
//   - GET    /sessions/{id}/basket           (the session's basket)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// DispositionRequest resolves a basket at the till.
type DispositionRequest struct {
	Disposition string `json:"disposition" binding:"required" enums:"abandoned,transferred" example:"transferred"`
}

// ListBasketsResponse wraps a page of active baskets.
type ListBasketsResponse struct {
	Baskets    []domain.Basket `json:"baskets"`
	Pagination Pagination      `json:"pagination"`
}

// ListActiveBaskets godoc
// @ID          listActiveBaskets
// @Summary     List active baskets
// @Description Lists the store's active baskets, oldest first, each with its purchased items.
// @Tags        Baskets
// @Produce     json
// @Param       X-Actor-ID  header  string  true   "Team member id"
// @Param       X-Store-ID  header  string  true   "Store id"
// @Param       page        query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size   query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListBasketsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /baskets [get]
func (h *Handlers) ListActiveBaskets(c *gin.Context) {
	page, pageSize := clampPagination(c)
	list, total, err := h.baskets.ListActive(c.Request.Context(), actor(c), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListBasketsResponse{Baskets: list, Pagination: newPagination(page, pageSize, total)})
}

// GetBasket godoc
// @ID          getBasket
// @Summary     Get a basket
// @Tags        Baskets
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Basket id"  format(uuid)
// @Success     200  {object}  domain.Basket
// @Failure     404  {object}  handlers.ErrorResponse  "Basket not found"
// @Router      /baskets/{id} [get]
func (h *Handlers) GetBasket(c *gin.Context) {
	b, err := h.baskets.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, b)
}

// GetSessionBasket godoc
// @ID          getSessionBasket
// @Summary     Get the basket of a session
// @Tags        Baskets
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Success     200  {object}  domain.Basket
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found or nothing purchased"
// @Router      /sessions/{id}/basket [get]
func (h *Handlers) GetSessionBasket(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)
	s, err := h.sessions.Get(ctx, a, c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	b, err := h.baskets.GetBySession(ctx, a, s.ID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if b == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session has no basket")
		return
	}
	ok(c, http.StatusOK, b)
}

// SetBasketDisposition godoc
// @ID          setBasketDisposition
// @Summary     Resolve a basket
// @Description Marks an active basket abandoned or transferred. The session and its items are not changed.
// @Tags        Baskets
// @Accept      json
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Basket id"  format(uuid)
// @Param       body        body    handlers.DispositionRequest  true  "Disposition"
// @Success     200  {object}  domain.Basket
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid disposition"
// @Failure     404  {object}  handlers.ErrorResponse  "Basket not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Basket already resolved"
// @Router      /baskets/{id}/disposition [post]
func (h *Handlers) SetBasketDisposition(c *gin.Context) {
	var req DispositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "disposition required")
		return
	}
	d, valid := domain.ParseBasketDisposition(strings.TrimSpace(req.Disposition))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "disposition must be abandoned or transferred")
		return
	}
	b, err := h.baskets.SetDisposition(c.Request.Context(), actor(c), c.Param("id"), d)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, b)
}

// DeleteBasket godoc
// @ID          deleteBasket
// @Summary     Delete a resolved basket
// @Description Removes the grouping record of an abandoned or transferred basket. Items stay purchased.
// @Tags        Baskets
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Basket id"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Basket not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Basket is still active"
// @Router      /baskets/{id} [delete]
func (h *Handlers) DeleteBasket(c *gin.Context) {
	if err := h.baskets.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
