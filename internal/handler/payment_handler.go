package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staffops/staffing-api/internal/models"
	"github.com/staffops/staffing-api/internal/service"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
	"github.com/staffops/staffing-api/pkg/response"
)

// PaymentHandler exposes settlement and payment ledger endpoints.
type PaymentHandler struct {
	service *service.SettlementService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(svc *service.SettlementService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param user_id query string false "Filter by staff member"
// @Param status query string false "Filter by status"
// @Param from query string false "Period overlap start (YYYY-MM-DD)"
// @Param to query string false "Period overlap end (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	filter.UserID = c.Query("user_id")
	filter.Status = models.PaymentStatus(c.Query("status"))
	if from, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		filter.To = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStaff {
		filter.UserID = claims.UserID
	}

	payments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Get godoc
// @Summary Get payment with line items
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStaff && payment.UserID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Generate godoc
// @Summary Generate a payment for a staff member and period
// @Description Aggregates approved unsettled attendance into one payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.GeneratePaymentRequest true "Settlement payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payments/generate [post]
func (h *PaymentHandler) Generate(c *gin.Context) {
	var req service.GeneratePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// MarkProcessing godoc
// @Summary Move payment to processing
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/processing [post]
func (h *PaymentHandler) MarkProcessing(c *gin.Context) {
	payment, err := h.service.MarkProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// MarkCompleted godoc
// @Summary Move payment to completed
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/complete [post]
func (h *PaymentHandler) MarkCompleted(c *gin.Context) {
	payment, err := h.service.MarkCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// ExportStatement godoc
// @Summary Export payment statement
// @Tags Payments
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /payments/{id}/statement [get]
func (h *PaymentHandler) ExportStatement(c *gin.Context) {
	format := service.StatementFormat(c.DefaultQuery("format", "csv"))
	data, contentType, err := h.service.ExportStatement(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("statement-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, contentType, data)
}
