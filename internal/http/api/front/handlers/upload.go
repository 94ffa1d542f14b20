package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/session"
	"github.com/nextgenbank/backoffice/internal/upload"
)

// UploadHandler accepts profile images and reports upload progress.
type UploadHandler struct {
	uploads  *upload.Service
	maxBytes int64
}

// NewUploadHandler constructs an UploadHandler. Request bodies are read up
// to maxBytes+1 so oversized files reach the size check.
func NewUploadHandler(uploads *upload.Service, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes}
}

// Upload schedules an image for the :image_type slot of the caller's profile.
func (h *UploadHandler) Upload(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	imageType := models.ImageType(c.Param("image_type"))
	if !imageType.Valid() {
		respond.Error(c, apperr.ErrInvalidImage.WithMessage("Invalid image type"))
		return
	}
	header, errFile := c.FormFile("file")
	if errFile != nil {
		respond.Error(c, apperr.ErrInvalidImage.WithMessage("File is required"))
		return
	}
	file, errOpen := header.Open()
	if errOpen != nil {
		respond.Error(c, apperr.Internal("open upload", errOpen))
		return
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if h.maxBytes > 0 {
		reader = io.LimitReader(file, h.maxBytes+1)
	}
	data, errRead := io.ReadAll(reader)
	if errRead != nil {
		respond.Error(c, apperr.Internal("read upload", errRead))
		return
	}

	taskID, errSchedule := h.uploads.Schedule(c.Request.Context(), user.ID, imageType, data)
	if errSchedule != nil {
		respond.Error(c, errSchedule)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Image upload scheduled",
		"task_id": taskID,
		"status":  models.JobStatusPending,
	})
}

// Status reports the state of one of the caller's uploads.
func (h *UploadHandler) Status(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	status, errStatus := h.uploads.Status(c.Request.Context(), user.ID, c.Param("task_id"))
	if errStatus != nil {
		respond.Error(c, errStatus)
		return
	}
	c.JSON(http.StatusOK, status)
}
