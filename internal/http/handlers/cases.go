package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/service"
)

type AssignRequest struct {
	Notify  bool   `json:"notify"`
	Subject string `json:"subject" validate:"required_if=Notify true"`
	Body    string `json:"body" validate:"required_if=Notify true"`
}

type MailRequest struct {
	Subject  string `json:"subject" validate:"required"`
	Body     string `json:"body" validate:"required"`
	ThreadID string `json:"thread_id"`
}

type UploadFile struct {
	Name     string `json:"name" validate:"required"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data" validate:"required"`
}

// UpdateRecordRequest replaces the current round. Omitting
// keep_attachment_ids keeps every attachment; an empty list removes them.
type UpdateRecordRequest struct {
	Status            string       `json:"status" validate:"omitempty,oneof=unhandled inProgress completed rejected"`
	ScheduledDateTime string       `json:"scheduled_date_time"`
	Method            string       `json:"method" validate:"omitempty,oneof=GoogleMeet Zoom Phone InPerson"`
	Content           string       `json:"content"`
	BusinessType      *string      `json:"business_type"`
	Remarks           *string      `json:"remarks"`
	KeepAttachmentIDs []string     `json:"keep_attachment_ids"`
	NewFiles          []UploadFile `json:"new_files" validate:"dive"`
}

// @Summary Initial data
// @Description Caller, joined cases and master data
// @Tags cases
// @Produce json
// @Success 200 {object} service.InitialData
// @Failure 401 {object} ErrorResponse
// @Router /api/initial-data [get]
func (h *Handler) InitialData(c *gin.Context) {
	data, err := h.Service.InitialData(c.Request.Context(), actorOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// @Summary List cases
// @Tags cases
// @Produce json
// @Success 200 {array} models.CaseView
// @Router /api/cases [get]
func (h *Handler) CasesList(c *gin.Context) {
	cases, err := h.Service.ListCases(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

// @Summary Assign a case to the caller
// @Description With notify the initial mail is sent after the assignment commits
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body AssignRequest false "Notification"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Router /api/cases/{id}/assign [post]
func (h *Handler) Assign(c *gin.Context) {
	var req AssignRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	var err error
	if req.Notify {
		err = h.Service.AssignAndNotify(ctx, c.Param("id"), actorOf(c), req.Subject, req.Body)
	} else {
		err = h.Service.Assign(ctx, c.Param("id"), actorOf(c))
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Decline a case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body MailRequest true "Decline mail"
// @Success 200 {object} map[string]string
// @Router /api/cases/{id}/decline [post]
func (h *Handler) Decline(c *gin.Context) {
	var req MailRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Service.Decline(c.Request.Context(), c.Param("id"), actorOf(c), req.Subject, req.Body); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Start the next support round
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]string
// @Failure 422 {object} ErrorResponse
// @Router /api/cases/{id}/reopen [post]
func (h *Handler) Reopen(c *gin.Context) {
	if err := h.Service.Reopen(c.Request.Context(), c.Param("id"), actorOf(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Update the current support round
// @Description JSON with base64 files, or multipart with a payload field and files
// @Tags cases
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body UpdateRecordRequest true "Record"
// @Success 200 {object} map[string]string
// @Router /api/cases/{id}/record [put]
func (h *Handler) UpdateRecord(c *gin.Context) {
	var req UpdateRecordRequest
	var files []service.FileUpload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := json.Unmarshal([]byte(c.PostForm("payload")), &req); err != nil {
			writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Invalid payload", err.Error())
			return
		}
		if err := h.Validator.Struct(req); err != nil {
			writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Validation failed", err.Error())
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Invalid multipart form", err.Error())
			return
		}
		for _, fh := range form.File["files"] {
			f, err := h.readUpload(fh)
			if err != nil {
				writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Invalid file", err.Error())
				return
			}
			files = append(files, f)
		}
	} else if !h.bind(c, &req) {
		return
	}
	for _, f := range req.NewFiles {
		if h.MaxUploadBytes > 0 && int64(len(f.Data)) > h.MaxUploadBytes {
			writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "File too large", f.Name)
			return
		}
		files = append(files, service.FileUpload{Name: f.Name, MimeType: f.MimeType, Data: f.Data})
	}

	patch := service.RecordPatch{
		CaseID:            c.Param("id"),
		Status:            req.Status,
		Method:            req.Method,
		Content:           req.Content,
		BusinessType:      req.BusinessType,
		Remarks:           req.Remarks,
		KeepAttachmentIDs: req.KeepAttachmentIDs,
		NewFiles:          files,
	}
	when, ok := parseOptionalTime(req.ScheduledDateTime, h.Service.Location)
	if !ok {
		writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Invalid scheduled_date_time", req.ScheduledDateTime)
		return
	}
	patch.ScheduledDateTime = when
	if err := h.Service.UpdateRecord(c.Request.Context(), patch, actorOf(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) readUpload(fh *multipart.FileHeader) (service.FileUpload, error) {
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		return service.FileUpload{}, fmt.Errorf("%s exceeds %d bytes", fh.Filename, h.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return service.FileUpload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return service.FileUpload{}, err
	}
	return service.FileUpload{Name: fh.Filename, MimeType: fh.Header.Get("Content-Type"), Data: data}, nil
}

// @Summary Send mail to the case contact
// @Description A thread_id replies within that thread, otherwise a new thread starts
// @Tags mail
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body MailRequest true "Mail"
// @Success 200 {object} map[string]string
// @Router /api/cases/{id}/emails [post]
func (h *Handler) SendEmail(c *gin.Context) {
	var req MailRequest
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	var err error
	if strings.TrimSpace(req.ThreadID) != "" {
		err = h.Service.ReplyInThread(ctx, c.Param("id"), actorOf(c), req.Subject, req.Body, req.ThreadID)
	} else {
		err = h.Service.SendNewEmail(ctx, c.Param("id"), actorOf(c), req.Subject, req.Body)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Mail threads of a case
// @Tags mail
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {array} models.ThreadGroup
// @Router /api/cases/{id}/threads [get]
func (h *Handler) Threads(c *gin.Context) {
	groups, err := h.Service.GetThreadMessages(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func parseOptionalTime(s string, loc *time.Location) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, ok := repository.ParseTime(s, loc)
	if !ok {
		return nil, false
	}
	return &t, true
}
