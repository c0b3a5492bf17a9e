// Exit flow HTTP handlers.
//
// This file exposes the reconciliation orchestrator:
//   - POST /exits                          (scan the tag at the exit)
//   - GET  /sessions/{id}/exit             (derived exit state)
//   - POST /sessions/{id}/exit             (resume an interrupted exit)
//   - POST /sessions/{id}/exit/scan        (match a barcode, FIFO)
//   - POST /sessions/{id}/exit/resolve     (record one outcome)
//   - POST /sessions/{id}/exit/finish      (verify and close)
//
// Resolution endpoints honor Idempotency-Key: a repeated key returns the
// stored resolution without applying it twice.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/http/middleware"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

// HeaderIdempotencyReplayed marks a response rebuilt from a stored resolution.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// StartExitRequest is the payload for scanning a tag at the exit.
type StartExitRequest struct {
	Tag string `json:"tag" binding:"required" example:"042"`
}

// ScanRequest is the payload for an exit scan.
type ScanRequest struct {
	Barcode string `json:"barcode" binding:"required" example:"SKU1"`
}

// ResolveRequest records one outcome. Exactly one of ItemID and Barcode is
// used; ItemID wins when both are set. A barcode resolves the oldest
// unresolved item carrying it. Lost items go through MarkLostRequest.
type ResolveRequest struct {
	ItemID  string `json:"item_id,omitempty" example:"7f3c2a9e-1111-4c1e-9a55-2b0f1c6d9e10"`
	Barcode string `json:"barcode,omitempty" example:"SKU1"`
	Outcome string `json:"outcome" binding:"required" enums:"purchased,restocked" example:"purchased"`
}

//
// Idempotency
//

// replay returns the stored resolution for the request's Idempotency-Key,
// or false when there is none.
func (h *Handlers) replay(c *gin.Context, sessionID string) (*services.ResolveResult, bool) {
	key, has := middleware.GetIdempotencyKey(c)
	a := actor(c)
	if !has || h.db == nil || a.ID == "" {
		return nil, false
	}
	ctx := c.Request.Context()
	rec, err := repo.FindReplay(ctx, h.db, repo.ReplayKey{ActorID: a.ID, SessionID: sessionID, Key: key}, h.now())
	if err != nil {
		return nil, false
	}
	res, err := h.reconcile.Replay(ctx, a, sessionID, rec.ItemID)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("item_id", rec.ItemID).Msg("idempotent replay failed")
		return nil, false
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	return res, true
}

// remember stores a consumed resolution under the request's Idempotency-Key.
// Resolutions that consumed nothing are not stored.
func (h *Handlers) remember(c *gin.Context, sessionID string, res *services.ResolveResult) {
	key, has := middleware.GetIdempotencyKey(c)
	a := actor(c)
	if !has || h.db == nil || a.ID == "" || res == nil || !res.Resolved || res.Item == nil {
		return
	}
	k := repo.ReplayKey{ActorID: a.ID, SessionID: sessionID, Key: key}
	if _, err := repo.SaveReplay(c.Request.Context(), h.db, k, res.Item.ID, http.StatusOK, h.now(), h.idemTTL); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency key")
	}
}

//
// Handlers
//

// StartExit godoc
// @ID          startExit
// @Summary     Start an exit
// @Description Looks up the open session for the scanned tag and moves it to exiting. Scanning the tag of a session that is already exiting resumes it.
// @Tags        Exit
// @Accept      json
// @Produce     json
//
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       body        body    handlers.StartExitRequest  true  "Tag"
//
// @Success     200  {object}  services.ExitView
// @Failure     400  {object}  handlers.ErrorResponse  "Blank tag"
// @Failure     404  {object}  handlers.ErrorResponse  "No active session for tag"
// @Router      /exits [post]
func (h *Handlers) StartExit(c *gin.Context) {
	var req StartExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tag required")
		return
	}
	v, err := h.reconcile.StartExit(c.Request.Context(), actor(c), req.Tag)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}

// ResumeExit godoc
// @ID          resumeExit
// @Summary     Resume an exit
// @Description Moves an in-progress session to exiting, or returns the current state of one already exiting.
// @Tags        Exit
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Success     200  {object}  services.ExitView
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Session already closed"
// @Router      /sessions/{id}/exit [post]
func (h *Handlers) ResumeExit(c *gin.Context) {
	v, err := h.reconcile.ResumeExit(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}

// GetExitState godoc
// @ID          getExitState
// @Summary     Get the exit state
// @Description Derives the exit state from the stored session and its unresolved items.
// @Tags        Exit
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Success     200  {object}  services.ExitView
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /sessions/{id}/exit [get]
func (h *Handlers) GetExitState(c *gin.Context) {
	v, err := h.reconcile.ExitState(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}

// ScanExitItem godoc
// @ID          scanExitItem
// @Summary     Match an exit scan
// @Description Returns the oldest unresolved item with the barcode and how many remain. Nothing is recorded.
// @Tags        Exit
// @Accept      json
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Param       body        body    handlers.ScanRequest  true  "Barcode"
// @Success     200  {object}  services.ScanMatch
// @Failure     400  {object}  handlers.ErrorResponse  "Blank or malformed barcode"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not in this session"
// @Failure     409  {object}  handlers.ErrorResponse  "Session is not exiting"
// @Router      /sessions/{id}/exit/scan [post]
func (h *Handlers) ScanExitItem(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "barcode required")
		return
	}
	m, err := h.reconcile.Scan(c.Request.Context(), actor(c), c.Param("id"), req.Barcode)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, m)
}

// ResolveExitItem godoc
// @ID          resolveExitItem
// @Summary     Resolve an item
// @Description Records purchased or restocked for one item and fans it out to the basket or back-of-house queue in the same transaction. A lost item is recorded with POST /sessions/{id}/discrepancy/lost.
// @Tags        Exit
// @Accept      json
// @Produce     json
//
// @Param       X-Actor-ID       header  string  true   "Team member id"
// @Param       X-Store-ID       header  string  true   "Store id"
// @Param       Idempotency-Key  header  string  false  "Client-generated key; a repeat returns the stored resolution"
// @Param       id               path    string  true   "Session id"  format(uuid)
// @Param       body             body    handlers.ResolveRequest  true  "Item and outcome"
//
// @Success     200  {object}  services.ResolveResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid or lost outcome, or missing item"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not in this session"
// @Failure     409  {object}  handlers.ErrorResponse  "Item already resolved or session not exiting"
// @Router      /sessions/{id}/exit/resolve [post]
func (h *Handlers) ResolveExitItem(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "outcome required")
		return
	}
	outcome, valid := domain.ParseItemOutcome(strings.TrimSpace(req.Outcome))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrInvalidOutcome.Error())
		return
	}
	if outcome == domain.ItemLost {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lost items are recorded via /sessions/{id}/discrepancy/lost")
		return
	}
	itemID, barcode := strings.TrimSpace(req.ItemID), strings.TrimSpace(req.Barcode)
	if itemID == "" && barcode == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id or barcode required")
		return
	}

	sessionID := c.Param("id")
	if res, hit := h.replay(c, sessionID); hit {
		ok(c, http.StatusOK, res)
		return
	}

	ctx := c.Request.Context()
	var (
		res *services.ResolveResult
		err error
	)
	if itemID != "" {
		res, err = h.reconcile.Resolve(ctx, actor(c), sessionID, itemID, outcome)
	} else {
		res, err = h.reconcile.ScanAndResolve(ctx, actor(c), sessionID, barcode, outcome)
	}
	if err != nil {
		failService(c, err, ErrCodeResolveFailed)
		return
	}
	h.remember(c, sessionID, res)
	ok(c, http.StatusOK, res)
}

// FinishExit godoc
// @ID          finishExit
// @Summary     Finish an exit
// @Description Verifies every item is resolved, recounts outcomes and closes the session as complete or flagged. Finishing a closed session returns it unchanged.
// @Tags        Exit
// @Produce     json
// @Param       X-Actor-ID  header  string  true  "Team member id"
// @Param       X-Store-ID  header  string  true  "Store id"
// @Param       id          path    string  true  "Session id"  format(uuid)
// @Success     200  {object}  services.ExitView
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Items are still unresolved"
// @Router      /sessions/{id}/exit/finish [post]
func (h *Handlers) FinishExit(c *gin.Context) {
	v, err := h.reconcile.Finish(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}
