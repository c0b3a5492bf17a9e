// This file resolves the acting identity of a request. Authentication happens
// upstream (gateway or device management); the actor is trusted as given in
// the X-Actor-ID, X-Store-ID and X-Actor-Role headers.

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

// Identity headers.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderStoreID   = "X-Store-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Context keys under which the actor is stored.
const (
	ctxKeyActor   = "actor"
	ctxKeyActorID = "actorID"
)

// IdentityOptions configures Identity.
type IdentityOptions struct {
	// Required rejects requests without both actor and store headers with 401.
	Required bool
}

// Identity reads the actor headers and stores a domain.Actor in the Gin
// context. Downstream code reads it with ActorFrom.
func Identity(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := domain.Actor{
			ID:      strings.TrimSpace(c.GetHeader(HeaderActorID)),
			StoreID: strings.TrimSpace(c.GetHeader(HeaderStoreID)),
			Role:    strings.TrimSpace(c.GetHeader(HeaderActorRole)),
		}
		if !a.Valid() {
			if opts.Required {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", HeaderActorID+" and "+HeaderStoreID+" headers are required")
				return
			}
			c.Next()
			return
		}
		c.Set(ctxKeyActor, a)
		c.Set(ctxKeyActorID, a.ID)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Identity.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(ctxKeyActor)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

// actorIDFromCtx returns the actor id or "" when no actor is set.
func actorIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyActorID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
