package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/service"
)

type StaffRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
	Role     string `json:"role" validate:"omitempty,oneof=admin staff"`
	IsActive *bool  `json:"is_active"`
}

type SettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=unhandled inProgress completed rejected"`
}

type ReassignRequest struct {
	StaffEmail string `json:"staff_email" validate:"required,email"`
}

type CaseDataRequest struct {
	ContactEmail        *string `json:"contact_email" validate:"omitempty,email"`
	OfficeName          *string `json:"office_name"`
	RequesterName       *string `json:"requester_name"`
	Details             *string `json:"details"`
	ServiceType         *string `json:"service_type"`
	Prefecture          *string `json:"prefecture"`
	SupportCount        *int    `json:"support_count" validate:"omitempty,min=1"`
	BusinessType        *string `json:"business_type"`
	Content             *string `json:"content"`
	Remarks             *string `json:"remarks"`
	Method              *string `json:"method" validate:"omitempty,oneof=GoogleMeet Zoom Phone InPerson"`
	ScheduledDateTime   *string `json:"scheduled_date_time"`
	CaseLimitOverride   *int    `json:"case_limit_override" validate:"omitempty,min=1"`
	AnnualLimitOverride *int    `json:"annual_limit_override" validate:"omitempty,min=1"`
	ClearCaseLimit      bool    `json:"clear_case_limit_override"`
	ClearAnnualLimit    bool    `json:"clear_annual_limit_override"`
}

// @Summary Admin panel
// @Description Staff, visible settings and the latest audit entries
// @Tags admin
// @Produce json
// @Success 200 {object} service.AdminPanel
// @Failure 403 {object} ErrorResponse
// @Router /api/admin/panel [get]
func (h *Handler) AdminPanel(c *gin.Context) {
	panel, err := h.Service.AdminPanel(c.Request.Context(), actorOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}

// @Summary Create or update a staff member
// @Tags admin
// @Accept json
// @Produce json
// @Param payload body StaffRequest true "Staff"
// @Success 200 {array} models.Staff
// @Router /api/admin/staff [put]
func (h *Handler) UpsertStaff(c *gin.Context) {
	var req StaffRequest
	if !h.bind(c, &req) {
		return
	}
	list, err := h.Service.UpsertStaff(c.Request.Context(), actorOf(c), service.StaffInput{
		Email: req.Email, Name: req.Name, Role: req.Role, IsActive: req.IsActive,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Deactivate a staff member
// @Tags admin
// @Produce json
// @Param email path string true "Staff email"
// @Success 200 {array} models.Staff
// @Router /api/admin/staff/{email} [delete]
func (h *Handler) DeactivateStaff(c *gin.Context) {
	list, err := h.Service.DeactivateStaff(c.Request.Context(), actorOf(c), c.Param("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Update settings
// @Tags admin
// @Accept json
// @Produce json
// @Param payload body SettingsRequest true "Settings"
// @Success 200 {object} map[string]string
// @Router /api/admin/settings [patch]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.Service.UpdateSettings(c.Request.Context(), actorOf(c), req.Settings)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Force a case status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body StatusRequest true "Status"
// @Success 200 {object} map[string]string
// @Router /api/admin/cases/{id}/status [put]
func (h *Handler) AdminSetStatus(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Service.AdminSetStatus(c.Request.Context(), actorOf(c), c.Param("id"), req.Status); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Correct case and record data
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body CaseDataRequest true "Fields to change"
// @Success 200 {object} map[string]string
// @Router /api/admin/cases/{id} [patch]
func (h *Handler) AdminUpdateCase(c *gin.Context) {
	var req CaseDataRequest
	if !h.bind(c, &req) {
		return
	}
	patch := service.CaseDataPatch{
		ContactEmail:        req.ContactEmail,
		OfficeName:          req.OfficeName,
		RequesterName:       req.RequesterName,
		Details:             req.Details,
		ServiceType:         req.ServiceType,
		Prefecture:          req.Prefecture,
		SupportCount:        req.SupportCount,
		BusinessType:        req.BusinessType,
		Content:             req.Content,
		Remarks:             req.Remarks,
		Method:              req.Method,
		CaseLimitOverride:   req.CaseLimitOverride,
		AnnualLimitOverride: req.AnnualLimitOverride,
		ClearCaseLimit:      req.ClearCaseLimit,
		ClearAnnualLimit:    req.ClearAnnualLimit,
	}
	if req.ScheduledDateTime != nil {
		when, ok := parseOptionalTime(*req.ScheduledDateTime, h.Service.Location)
		if !ok || when == nil {
			writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Invalid scheduled_date_time", *req.ScheduledDateTime)
			return
		}
		patch.ScheduledDateTime = when
	}
	if err := h.Service.AdminUpdateCaseData(c.Request.Context(), actorOf(c), c.Param("id"), patch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Reassign a case
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body ReassignRequest true "Target staff"
// @Success 200 {object} map[string]string
// @Router /api/admin/cases/{id}/reassign [post]
func (h *Handler) AdminReassign(c *gin.Context) {
	var req ReassignRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Service.AdminReassign(c.Request.Context(), actorOf(c), c.Param("id"), req.StaffEmail); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
