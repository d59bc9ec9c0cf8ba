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
	"go.opentelemetry.io/otel/codes"
)

// TicketRequestHandler handles ticket request HTTP requests
type TicketRequestHandler struct {
	requests service.TicketRequestService
	perms    PermissionSource
}

// NewTicketRequestHandler creates a new TicketRequestHandler
func NewTicketRequestHandler(requests service.TicketRequestService, perms PermissionSource) *TicketRequestHandler {
	return &TicketRequestHandler{
		requests: requests,
		perms:    perms,
	}
}

// Create handles POST /ticket-requests
func (h *TicketRequestHandler) Create(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_request.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	principal, err := principalFrom(c, h.perms)
	if err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}

	var req dto.CreateTicketRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	created, err := h.requests.Create(ctx, &req, principal)
	if err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}

	middleware.SetAuditResourceID(c, created.ID)
	span.SetAttributes(telemetry.RequestIDAttr(created.ID), telemetry.RequestTitleAttr(string(created.TitleRequest)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, response.Success(created))
}

// Update handles PATCH /ticket-requests/:id. A status in the body confirms,
// cancels, refunds or rejects the request; otherwise the fields are edited.
func (h *TicketRequestHandler) Update(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_request.update")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	id := c.Param("id")
	span.SetAttributes(telemetry.RequestIDAttr(id))

	principal, err := principalFrom(c, h.perms)
	if err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}

	var req dto.UpdateTicketRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	if req.Status != nil {
		middleware.SetAuditAction(c, auditActionFor(*req.Status))
		middleware.SetAuditMetadata(c, map[string]interface{}{"status": string(*req.Status)})
	}

	updated, err := h.requests.Update(ctx, id, &req, principal)
	if err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}

	span.SetAttributes(telemetry.RequestStatusAttr(string(updated.Status)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(updated))
}

// Delete handles DELETE /ticket-requests/:id
func (h *TicketRequestHandler) Delete(c *gin.Context) {
	principal, err := principalFrom(c, h.perms)
	if err != nil {
		handleError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.requests.Delete(c.Request.Context(), id, principal); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]string{"message": "Ticket request deleted successfully"}))
}

// Get handles GET /ticket-requests/:id
func (h *TicketRequestHandler) Get(c *gin.Context) {
	principal, err := principalFrom(c, h.perms)
	if err != nil {
		handleError(c, err)
		return
	}

	req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if req.UserID != principal.UserID && req.CreatedBy != principal.UserID &&
		!principal.HasPermission(domain.PermTicketRequestApprove) {
		handleError(c, domain.ErrNotOwner)
		return
	}

	c.JSON(http.StatusOK, response.Success(req))
}

// List handles GET /ticket-requests. Callers without the approve permission
// only see their own requests.
func (h *TicketRequestHandler) List(c *gin.Context) {
	principal, err := principalFrom(c, h.perms)
	if err != nil {
		handleError(c, err)
		return
	}

	var filter dto.TicketRequestListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid query parameters"))
		return
	}
	if !principal.HasPermission(domain.PermTicketRequestApprove) {
		filter.UserID = principal.UserID
	}
	filter.SetDefaults()

	items, total, err := h.requests.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(items, filter.Page, filter.PerPage, int64(total)))
}

func auditActionFor(status domain.RequestStatus) middleware.AuditAction {
	switch status {
	case domain.RequestStatusConfirmed:
		return middleware.AuditActionConfirm
	case domain.RequestStatusRejected:
		return middleware.AuditActionReject
	case domain.RequestStatusCancelled:
		return middleware.AuditActionCancel
	case domain.RequestStatusRefunded:
		return middleware.AuditActionRefund
	default:
		return middleware.AuditActionUpdate
	}
}
