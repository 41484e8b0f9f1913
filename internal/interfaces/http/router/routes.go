package router

import (
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// CustomerRoutes maps the customer store operations onto /customers
func CustomerRoutes(h *handler.CustomerHandler) *DomainGroup {
	return NewDomainGroup("customers", "/customers").
		POST("", h.Create).
		GET("", h.List).
		GET("/recent", h.ListRecent).
		GET("/search", h.Search).
		GET("/:id", h.GetByID).
		PATCH("/:id", h.Update).
		PUT("/:id", h.Update)
}

// SystemRoutes exposes the liveness ping inside the versioned API
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "").
		GET("/ping", h.Ping)
}

// RegisterHealth mounts the health check at the engine root
func RegisterHealth(engine *gin.Engine, h *handler.SystemHandler) {
	engine.GET("/health", h.Health)
}
