package http

import (
	"net/http"

	"seryvo/internal/core/domain"
	"seryvo/internal/infrastructure/middleware"
	"seryvo/internal/infrastructure/realtime"

	"github.com/gin-gonic/gin"
)

// RealtimeHandler exposes the presence registry's read surface for support
// tooling and dashboards.
type RealtimeHandler struct {
	registry *realtime.Registry
}

func NewRealtimeHandler(registry *realtime.Registry) *RealtimeHandler {
	return &RealtimeHandler{registry: registry}
}

func (h *RealtimeHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/realtime/status", middleware.RequireRole(domain.RoleAdmin, domain.RoleSupport), h.Status)
	api.GET("/realtime/online/:user_id", h.OnlineCheck)
}

func (h *RealtimeHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_users":      len(h.registry.OnlineUsers()),
		"total_connections": h.registry.ConnectionCount(),
		"online_drivers":    len(h.registry.OnlineWithRole(domain.RoleDriver)),
		"online_clients":    len(h.registry.OnlineWithRole(domain.RoleClient)),
		"channels":          h.registry.ChannelSizes(),
		"rooms":             h.registry.RoomSizes(),
	})
}

func (h *RealtimeHandler) OnlineCheck(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	target := domain.UserID(c.Param("user_id"))
	if identity.UserID != target && !identity.IsStaff() {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": target,
		"online":  h.registry.IsOnline(target),
	})
}
