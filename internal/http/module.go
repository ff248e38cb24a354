// Package http holds the pieces the router needs to mount domain modules.
package http

import "github.com/gin-gonic/gin"

// Module is a bounded context with its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what modules mount their routes on.
type RouterContext struct {
	// V1 is /api/v1 without authentication. Tracking links and the
	// opportunity feed live here.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind an operator token.
	Protected *gin.RouterGroup
	// PublicRateLimit limits unauthenticated endpoints per client IP.
	PublicRateLimit gin.HandlerFunc
}
