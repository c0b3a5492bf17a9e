// Discrepancy HTTP handlers.
//
// When a team member records an item as lost the session enters a
// discrepancy. The remaining items are then settled one at a time:
//   - POST /sessions/{id}/discrepancy/late-scan   (garment turned up)
//   - POST /sessions/{id}/discrepancy/lost        (garment is gone)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// LateScanRequest settles one unresolved item by scanning it. Outcome is
// purchased or restocked.
type LateScanRequest struct {
	ItemID  string `json:"item_id" binding:"required" example:"7f3c2a9e-1111-4c1e-9a55-2b0f1c6d9e10"`
	Barcode string `json:"barcode" binding:"required" example:"SKU1"`
	Outcome string `json:"outcome" binding:"required" enums:"purchased,restocked" example:"restocked"`
}

// MarkLostRequest settles one unresolved item as lost.
type MarkLostRequest struct {
	ItemID string `json:"item_id" binding:"required" example:"7f3c2a9e-1111-4c1e-9a55-2b0f1c6d9e10"`
	// Notes is free text for loss prevention, clipped server-side.
	Notes string `json:"notes,omitempty" example:"customer left through the side door"`
}

// LateScan godoc
// @ID          lateScan
// @Summary     Late-scan an item
// @Description Resolves an unresolved item after it turns up. The scanned barcode must equal the item's barcode; on mismatch the response has resolved=false and a barcode_mismatch warning.
// @Tags        Discrepancy
// @Accept      json
// @Produce     json
//
// @Param       X-Actor-ID       header  string  true   "Team member id"
// @Param       X-Store-ID       header  string  true   "Store id"
// @Param       Idempotency-Key  header  string  false  "Client-generated key; a repeat returns the stored resolution"
// @Param       id               path    string  true   "Session id"  format(uuid)
// @Param       body             body    handlers.LateScanRequest  true  "Item, barcode and outcome"
//
// @Success     200  {object}  services.ResolveResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid outcome or blank barcode"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not in this session"
// @Failure     409  {object}  handlers.ErrorResponse  "Item already resolved or session not exiting"
// @Router      /sessions/{id}/discrepancy/late-scan [post]
func (h *Handlers) LateScan(c *gin.Context) {
	var req LateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id, barcode and outcome required")
		return
	}
	outcome, valid := domain.ParseItemOutcome(strings.TrimSpace(req.Outcome))
	if !valid || outcome == domain.ItemLost {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "outcome must be purchased or restocked")
		return
	}

	sessionID := c.Param("id")
	if res, hit := h.replay(c, sessionID); hit {
		ok(c, http.StatusOK, res)
		return
	}
	res, err := h.reconcile.LateScan(c.Request.Context(), actor(c), sessionID, strings.TrimSpace(req.ItemID), req.Barcode, outcome)
	if err != nil {
		failService(c, err, ErrCodeResolveFailed)
		return
	}
	h.remember(c, sessionID, res)
	ok(c, http.StatusOK, res)
}

// MarkLost godoc
// @ID          markLost
// @Summary     Mark an item lost
// @Description Resolves an unresolved item as lost and records it in the shrinkage log.
// @Tags        Discrepancy
// @Accept      json
// @Produce     json
//
// @Param       X-Actor-ID       header  string  true   "Team member id"
// @Param       X-Store-ID       header  string  true   "Store id"
// @Param       Idempotency-Key  header  string  false  "Client-generated key; a repeat returns the stored resolution"
// @Param       id               path    string  true   "Session id"  format(uuid)
// @Param       body             body    handlers.MarkLostRequest  true  "Item and notes"
//
// @Success     200  {object}  services.ResolveResult
// @Failure     404  {object}  handlers.ErrorResponse  "Item not in this session"
// @Failure     409  {object}  handlers.ErrorResponse  "Item already resolved or session not exiting"
// @Router      /sessions/{id}/discrepancy/lost [post]
func (h *Handlers) MarkLost(c *gin.Context) {
	var req MarkLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id required")
		return
	}

	sessionID := c.Param("id")
	if res, hit := h.replay(c, sessionID); hit {
		ok(c, http.StatusOK, res)
		return
	}
	res, err := h.reconcile.MarkLost(c.Request.Context(), actor(c), sessionID, strings.TrimSpace(req.ItemID), req.Notes)
	if err != nil {
		failService(c, err, ErrCodeResolveFailed)
		return
	}
	h.remember(c, sessionID, res)
	ok(c, http.StatusOK, res)
}
