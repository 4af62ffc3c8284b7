package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staffops/staffing-api/internal/models"
	"github.com/staffops/staffing-api/internal/service"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
	"github.com/staffops/staffing-api/pkg/response"
)

// AvailabilityHandler exposes the staff availability calendar.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// List godoc
// @Summary List availability for the current staff member
// @Tags Availability
// @Produce json
// @Param user_id query string false "Staff member (admins only)"
// @Param from query string false "Start of range (YYYY-MM-DD)"
// @Param to query string false "End of range (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	userID := claims.UserID
	if claims.Role == models.RoleAdmin && c.Query("user_id") != "" {
		userID = c.Query("user_id")
	}
	var from, to *time.Time
	if f, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		from = &f
	}
	if t, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		to = &t
	}
	rows, err := h.service.List(c.Request.Context(), userID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Set godoc
// @Summary Mark availability for one date
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.SetAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Router /availability [put]
func (h *AvailabilityHandler) Set(c *gin.Context) {
	var req service.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	row, err := h.service.Set(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

type setAvailabilityRangeRequest struct {
	From        time.Time `json:"from" binding:"required"`
	To          time.Time `json:"to" binding:"required"`
	IsAvailable bool      `json:"is_available"`
	Notes       *string   `json:"notes,omitempty"`
}

// SetRange godoc
// @Summary Mark availability for a date range
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body setAvailabilityRangeRequest true "Range payload"
// @Success 200 {object} response.Envelope
// @Router /availability/range [put]
func (h *AvailabilityHandler) SetRange(c *gin.Context) {
	var req setAvailabilityRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.service.SetRange(c.Request.Context(), claims.UserID, req.From, req.To, req.IsAvailable, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
