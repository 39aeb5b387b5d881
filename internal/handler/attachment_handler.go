package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"colabtrack/internal/model"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AttachmentService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.FileAttachment, error)
	Versions(ctx context.Context, id uuid.UUID) ([]model.FileAttachment, error)
	UploadNewVersion(ctx context.Context, taskID uuid.UUID, meta service.FileMeta, uploaderID uuid.UUID, parentFileID *uuid.UUID) (*model.FileAttachment, error)
	DeleteAttachment(ctx context.Context, id uuid.UUID) error
}

// AttachmentHandler records attachment metadata. The blobs themselves live in external
// storage and are referenced by file_path.
type AttachmentHandler struct {
	attachments AttachmentService
	tasks       TaskLocator
	access      projectAccess
	log         *slog.Logger
}

func NewAttachmentHandler(attachments AttachmentService, tasks TaskLocator, projects ProjectReader, members AccessChecker, log *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		tasks:       tasks,
		access:      projectAccess{projects: projects, members: members, log: log},
		log:         log,
	}
}

type UploadAttachmentRequest struct {
	FileName     string     `json:"file_name" binding:"required,max=255"`
	FilePath     string     `json:"file_path" binding:"required"`
	FileType     string     `json:"file_type" binding:"max=100"`
	FileSize     int64      `json:"file_size" binding:"min=0"`
	ParentFileID *uuid.UUID `json:"parent_file_id"`
}

type AttachmentResponse struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	UploadedBy   string  `json:"uploaded_by"`
	FileName     string  `json:"file_name"`
	FilePath     string  `json:"file_path"`
	FileType     string  `json:"file_type"`
	FileSize     int64   `json:"file_size"`
	Version      int     `json:"version"`
	ParentFileID *string `json:"parent_file_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func newAttachmentResponse(a *model.FileAttachment) AttachmentResponse {
	return AttachmentResponse{
		ID:           a.ID.String(),
		TaskID:       a.TaskID.String(),
		UploadedBy:   a.UploadedBy.String(),
		FileName:     a.FileName,
		FilePath:     a.FilePath,
		FileType:     a.FileType,
		FileSize:     a.FileSize,
		Version:      a.Version,
		ParentFileID: optionalID(a.ParentFileID),
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}

func newAttachmentList(items []model.FileAttachment) []AttachmentResponse {
	response := make([]AttachmentResponse, len(items))
	for i := range items {
		response[i] = newAttachmentResponse(&items[i])
	}
	return response
}

func (h *AttachmentHandler) authorizeTask(c *gin.Context, taskID uuid.UUID, requiredRole string) bool {
	projectID, err := h.tasks.ProjectOf(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return false
	}
	return h.access.authorize(c, projectID, requiredRole)
}

// authorizeAttachment loads the attachment and checks access to the project of its task.
func (h *AttachmentHandler) authorizeAttachment(c *gin.Context, id uuid.UUID, requiredRole string) bool {
	attachment, err := h.attachments.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return false
	}
	return h.authorizeTask(c, attachment.TaskID, requiredRole)
}

// Upload stores a new attachment, or the next version of parent_file_id when given
func (h *AttachmentHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}

	var req UploadAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	attachment, err := h.attachments.UploadNewVersion(c.Request.Context(), taskID, service.FileMeta{
		FileName: req.FileName,
		FilePath: req.FilePath,
		FileType: req.FileType,
		FileSize: req.FileSize,
	}, userID, req.ParentFileID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newAttachmentResponse(attachment))
}

func (h *AttachmentHandler) GetByTask(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberViewer) {
		return
	}

	items, err := h.attachments.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newAttachmentList(items))
}

func (h *AttachmentHandler) GetVersions(c *gin.Context) {
	id, ok := paramID(c, "id", "attachment")
	if !ok {
		return
	}
	if !h.authorizeAttachment(c, id, model.MemberViewer) {
		return
	}

	versions, err := h.attachments.Versions(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newAttachmentList(versions))
}

// Delete removes the attachment along with every later version of it
func (h *AttachmentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "attachment")
	if !ok {
		return
	}
	if !h.authorizeAttachment(c, id, model.MemberEditor) {
		return
	}

	if err := h.attachments.DeleteAttachment(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
