package handler

import (
	"net/http"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/service"
	"github.com/bamanh2802/bookingcar/pkg/middleware"
	"github.com/bamanh2802/bookingcar/pkg/response"
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
	"github.com/gin-gonic/gin"
)

// TripHandler handles trip, ticket and commission HTTP requests
type TripHandler struct {
	trips       *service.TripService
	tickets     *service.TicketLedger
	commissions service.CommissionPayer
	perms       PermissionSource
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(trips *service.TripService, tickets *service.TicketLedger, commissions service.CommissionPayer, perms PermissionSource) *TripHandler {
	return &TripHandler{
		trips:       trips,
		tickets:     tickets,
		commissions: commissions,
		perms:       perms,
	}
}

// Create handles POST /trips
func (h *TripHandler) Create(c *gin.Context) {
	var req dto.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	trip := req.ToTrip()
	if err := h.trips.CreateTrip(c.Request.Context(), trip); err != nil {
		handleError(c, err)
		return
	}

	middleware.SetAuditResourceID(c, trip.ID)
	c.JSON(http.StatusCreated, response.Success(trip))
}

// Get handles GET /trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	trip, err := h.trips.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// UpdateStatus handles PATCH /trips/:id/status
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateTripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	trip, err := h.trips.UpdateTripStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		handleError(c, err)
		return
	}

	if req.Status == domain.TripStatusCancelled {
		middleware.SetAuditAction(c, middleware.AuditActionCancel)
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// Resize handles PATCH /trips/:id/seats
func (h *TripHandler) Resize(c *gin.Context) {
	var req dto.ResizeTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	trip, err := h.trips.ResizeTrip(c.Request.Context(), c.Param("id"), req.TotalSeats)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// PayCommissions handles POST /trips/:id/commissions - runs the cascade on demand
func (h *TripHandler) PayCommissions(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.trip.pay_commissions")
	defer span.End()

	tripID := c.Param("id")
	span.SetAttributes(telemetry.TripIDAttr(tripID))

	result, err := h.commissions.PayTripCommissions(ctx, tripID)
	if err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}

	middleware.SetAuditAction(c, middleware.AuditActionPayout)
	middleware.SetAuditMetadata(c, map[string]interface{}{
		"paid":   result.Paid,
		"failed": result.Failed,
	})
	c.JSON(http.StatusOK, response.Success(result))
}

// GetTicket handles GET /tickets/:id
func (h *TripHandler) GetTicket(c *gin.Context) {
	principal, err := principalFrom(c, h.perms)
	if err != nil {
		handleError(c, err)
		return
	}

	ticket, err := h.tickets.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if ticket.UserID != principal.UserID && !principal.HasPermission(domain.PermTicketRequestApprove) {
		handleError(c, domain.ErrTicketNotOwned)
		return
	}

	c.JSON(http.StatusOK, response.Success(ticket))
}
