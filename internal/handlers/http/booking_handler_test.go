package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/services"
	"seryvo/internal/infrastructure/middleware"
	"seryvo/internal/infrastructure/realtime"
	"seryvo/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type apiFixture struct {
	router *gin.Engine
	auth   *services.AuthService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	bookings := memory.NewMemoryBookingStore()
	drivers := memory.NewMemoryDriverStore()
	registry := realtime.NewRegistry(logger)
	broker := realtime.NewBroker(registry, realtime.NopMetrics{}, logger)

	dispatcher := services.NewDispatcher(drivers, registry, broker, logger)
	lifecycle := services.NewBookingLifecycle(bookings, dispatcher, logger)
	auth := services.NewAuthService("test-secret")

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	api := router.Group("/api/v1", middleware.AuthMiddleware(auth))
	NewBookingHandler(lifecycle, dispatcher, bookings, logger).SetupRoutes(api)
	NewDriverHandler(drivers, logger).SetupRoutes(api)
	NewRealtimeHandler(registry).SetupRoutes(api)

	return &apiFixture{router: router, auth: auth}
}

func (f *apiFixture) token(t *testing.T, id domain.UserID, role domain.Role) string {
	t.Helper()
	token, err := f.auth.Generate(domain.Identity{UserID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createBooking(t *testing.T, clientID domain.UserID) domain.BookingID {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/bookings", f.token(t, clientID, domain.RoleClient), map[string]interface{}{
		"pickup_address":  "1 Main Street",
		"dropoff_address": "2 Side Street",
		"pickup_lat":      55.75, "pickup_lng": 37.61,
		"dropoff_lat": 55.76, "dropoff_lng": 37.62,
		"fare_estimate": 15.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Booking domain.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Booking.ID)
	require.Equal(t, domain.StatusRequested, resp.Booking.Status)
	return resp.Booking.ID
}

func TestCreateBooking(t *testing.T) {
	f := newAPIFixture(t)
	f.createBooking(t, "c1")
}

func TestCreateBooking_DriverForbidden(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/bookings", f.token(t, "d1", domain.RoleDriver), map[string]interface{}{
		"pickup_address":  "1 Main Street",
		"dropoff_address": "2 Side Street",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateBooking_InvalidCoordinates(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/bookings", f.token(t, "c1", domain.RoleClient), map[string]interface{}{
		"pickup_address":  "1 Main Street",
		"dropoff_address": "2 Side Street",
		"pickup_lat":      99.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptBooking(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", id),
		f.token(t, "d1", domain.RoleDriver),
		map[string]string{"status": "driver_assigned"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Booking domain.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusDriverAssigned, resp.Booking.Status)
	require.NotNil(t, resp.Booking.DriverID)
	assert.Equal(t, domain.UserID("d1"), *resp.Booking.DriverID)
}

func TestAcceptBooking_SecondDriverConflict(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", id),
		f.token(t, "d1", domain.RoleDriver),
		map[string]string{"status": "driver_assigned"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", id),
		f.token(t, "d2", domain.RoleDriver),
		map[string]string{"status": "driver_assigned"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", id),
		f.token(t, "d1", domain.RoleDriver),
		map[string]string{"status": "in_progress"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatus_CancellationStatusRejected(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	// The status endpoint must not let a participant pick a cancellation
	// variant; attribution belongs to the cancel endpoint.
	w := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", id),
		f.token(t, "c1", domain.RoleClient),
		map[string]string{"status": "canceled_by_driver"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", id),
		f.token(t, "c1", domain.RoleClient), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Booking domain.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusRequested, resp.Booking.Status)
}

func TestUpdateStatus_UnknownBooking(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPatch, "/api/v1/bookings/nope/status",
		f.token(t, "d1", domain.RoleDriver),
		map[string]string{"status": "driver_assigned"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelBooking(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%s/cancel", id),
		f.token(t, "c1", domain.RoleClient),
		map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Booking domain.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusCanceledByClient, resp.Booking.Status)
}

func TestCancelBooking_StrangerForbidden(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%s/cancel", id),
		f.token(t, "c2", domain.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetBooking_ParticipantAndStranger(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", id),
		f.token(t, "c1", domain.RoleClient), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", id),
		f.token(t, "c2", domain.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", id),
		f.token(t, "s1", domain.RoleSupport), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t, "c1")

	w := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", id),
		f.token(t, "d1", domain.RoleDriver),
		map[string]string{"status": "driver_assigned"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s/events", id),
		f.token(t, "c1", domain.RoleClient), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []domain.BookingEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, domain.StatusRequested, resp.Events[0].ToStatus)
	assert.Equal(t, domain.StatusDriverAssigned, resp.Events[1].ToStatus)
}

func TestDriverAvailability(t *testing.T) {
	f := newAPIFixture(t)

	available := true
	w := f.do(t, http.MethodPut, "/api/v1/drivers/availability",
		f.token(t, "d1", domain.RoleDriver),
		map[string]*bool{"available": &available})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/drivers/me",
		f.token(t, "d1", domain.RoleDriver), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":true`)

	// Clients cannot toggle availability.
	w = f.do(t, http.MethodPut, "/api/v1/drivers/availability",
		f.token(t, "c1", domain.RoleClient),
		map[string]*bool{"available": &available})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRealtimeStatus_RequiresStaff(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/realtime/status",
		f.token(t, "c1", domain.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/realtime/status",
		f.token(t, "a1", domain.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_connections")
}

func TestRealtimeOnlineCheck(t *testing.T) {
	f := newAPIFixture(t)

	// Users may check themselves, staff may check anyone.
	w := f.do(t, http.MethodGet, "/api/v1/realtime/online/c1",
		f.token(t, "c1", domain.RoleClient), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"online":false`)

	w = f.do(t, http.MethodGet, "/api/v1/realtime/online/c1",
		f.token(t, "c2", domain.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/realtime/online/c1",
		f.token(t, "s1", domain.RoleSupport), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
