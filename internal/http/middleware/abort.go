// Package middleware contains shared Gin middleware used by the HTTP layer.
package middleware

import (
	"github.com/gin-gonic/gin"
)

// Abort stops the chain with the API's error envelope:
//
//	{"success": false, "error": "...", "code": "...", "requestId": "..."}
//
// Handlers produce the same shape through their own helpers; middleware uses
// this one so it does not depend on the handlers package.
func Abort(c *gin.Context, status int, code, msg string) {
	body := gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	}
	if rid := RequestIDFrom(c); rid != "" {
		body["requestId"] = rid
	}
	c.AbortWithStatusJSON(status, body)
}
