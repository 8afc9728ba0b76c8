package http

import (
	"net/http"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"
	"seryvo/internal/infrastructure/middleware"
	apperrors "seryvo/pkg/errors"
	"seryvo/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking lifecycle over REST. Transition
// endpoints apply the same state machine as the realtime path, so an accept
// over HTTP and an accept over WebSocket race through one store.
type BookingHandler struct {
	lifecycle ports.LifecycleService
	dispatch  ports.DispatchService
	store     ports.BookingStore
	logger    *zap.SugaredLogger
}

func NewBookingHandler(
	lifecycle ports.LifecycleService,
	dispatch ports.DispatchService,
	store ports.BookingStore,
	logger *zap.SugaredLogger,
) *BookingHandler {
	return &BookingHandler{
		lifecycle: lifecycle,
		dispatch:  dispatch,
		store:     store,
		logger:    logger,
	}
}

func (h *BookingHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/bookings", middleware.RequireRole(domain.RoleClient, domain.RoleAdmin), h.CreateBooking)
	api.GET("/bookings/:id", h.GetBooking)
	api.GET("/bookings/:id/events", h.ListEvents)
	api.PATCH("/bookings/:id/status", h.UpdateStatus)
	api.POST("/bookings/:id/cancel", h.CancelBooking)
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		PickupAddress  string  `json:"pickup_address" binding:"required"`
		DropoffAddress string  `json:"dropoff_address" binding:"required"`
		PickupLat      float64 `json:"pickup_lat"`
		PickupLng      float64 `json:"pickup_lng"`
		DropoffLat     float64 `json:"dropoff_lat"`
		DropoffLng     float64 `json:"dropoff_lng"`
		FareEstimate   float64 `json:"fare_estimate"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, err := range []error{
		validation.ValidateAddress(req.PickupAddress),
		validation.ValidateAddress(req.DropoffAddress),
		validation.ValidateCoordinates(req.PickupLat, req.PickupLng),
		validation.ValidateCoordinates(req.DropoffLat, req.DropoffLng),
		validation.ValidateFare(req.FareEstimate),
	} {
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	booking := &domain.Booking{
		ClientID:       identity.UserID,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
		FareEstimate:   req.FareEstimate,
	}

	created, err := h.lifecycle.CreateBooking(c.Request.Context(), booking)
	if err != nil {
		c.Error(err)
		return
	}

	offered, err := h.dispatch.DispatchNewBookingOffer(c.Request.Context(), created.ID, map[string]interface{}{
		"pickup_address":  created.PickupAddress,
		"dropoff_address": created.DropoffAddress,
		"pickup_lat":      created.PickupLat,
		"pickup_lng":      created.PickupLng,
		"fare_estimate":   created.FareEstimate,
	})
	if err != nil {
		// Booking exists even when the offer fan-out failed; report it.
		h.logger.Errorw("offer dispatch failed", "booking_id", created.ID, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking":    created,
		"offered_to": len(offered),
	})
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	_, booking, ok := h.loadAuthorized(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func (h *BookingHandler) ListEvents(c *gin.Context) {
	_, booking, ok := h.loadAuthorized(c)
	if !ok {
		return
	}

	events, err := h.store.ListEvents(c.Request.Context(), booking.ID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": booking.ID,
		"events":     events,
	})
}

func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.lifecycle.Transition(
		c.Request.Context(),
		domain.BookingID(c.Param("id")),
		identity,
		domain.BookingStatus(req.Status),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional for cancellations.
	_ = c.ShouldBindJSON(&req)

	if err := validation.ValidateReason(req.Reason); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.lifecycle.Cancel(c.Request.Context(), domain.BookingID(c.Param("id")), identity, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// loadAuthorized fetches the booking and ensures the caller is a participant
// or staff. On failure it has already written the response.
func (h *BookingHandler) loadAuthorized(c *gin.Context) (domain.Identity, *domain.Booking, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return domain.Identity{}, nil, false
	}

	booking, err := h.lifecycle.GetBooking(c.Request.Context(), domain.BookingID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return domain.Identity{}, nil, false
	}

	isParticipant := identity.UserID == booking.ClientID ||
		(booking.DriverID != nil && identity.UserID == *booking.DriverID)
	if !isParticipant && !identity.IsStaff() {
		appErr := apperrors.NewForbiddenError("not a participant of this booking")
		c.JSON(appErr.HTTPStatus, gin.H{"error": string(appErr.Code), "message": appErr.Message})
		return domain.Identity{}, nil, false
	}
	return identity, booking, true
}
