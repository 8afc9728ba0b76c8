package http

import (
	"net/http"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"
	"seryvo/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DriverHandler manages the driver-side availability toggle that feeds
// dispatch eligibility.
type DriverHandler struct {
	drivers ports.DriverStore
	logger  *zap.SugaredLogger
}

func NewDriverHandler(drivers ports.DriverStore, logger *zap.SugaredLogger) *DriverHandler {
	return &DriverHandler{drivers: drivers, logger: logger}
}

func (h *DriverHandler) SetupRoutes(api *gin.RouterGroup) {
	api.PUT("/drivers/availability", middleware.RequireRole(domain.RoleDriver), h.SetAvailability)
	api.GET("/drivers/me", middleware.RequireRole(domain.RoleDriver), h.GetProfile)
	api.PUT("/drivers/:id/approval", middleware.RequireRole(domain.RoleAdmin), h.SetApproval)
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.drivers.SetAvailability(c.Request.Context(), identity.UserID, *req.Available)
	if err == domain.ErrDriverNotFound {
		// First toggle creates the profile; approval stays with admins.
		err = h.drivers.SaveProfile(c.Request.Context(), &domain.DriverProfile{
			UserID:    identity.UserID,
			Available: *req.Available,
		})
	}
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Infow("driver availability changed",
		"driver_id", identity.UserID,
		"available", *req.Available,
	)
	c.JSON(http.StatusOK, gin.H{
		"driver_id": identity.UserID,
		"available": *req.Available,
	})
}

func (h *DriverHandler) GetProfile(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	profile, err := h.drivers.GetProfile(c.Request.Context(), identity.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *DriverHandler) SetApproval(c *gin.Context) {
	var req struct {
		Approved *bool `json:"approved" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	driverID := domain.UserID(c.Param("id"))
	profile, err := h.drivers.GetProfile(c.Request.Context(), driverID)
	if err == domain.ErrDriverNotFound {
		profile = &domain.DriverProfile{UserID: driverID}
		err = nil
	}
	if err != nil {
		c.Error(err)
		return
	}

	profile.Approved = *req.Approved
	if err := h.drivers.SaveProfile(c.Request.Context(), profile); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
