package middleware

import "github.com/gin-gonic/gin"

// abortJSON stops the chain with the API's error body. It mirrors
// handlers.Fail, which middleware cannot import.
func abortJSON(c *gin.Context, status int, code, msg string) {
	rid := requestIDFrom(c)
	if rid != "" {
		c.Header(requestIDHeader, rid)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": rid,
		"code":       code,
		"message":    msg,
	})
}
