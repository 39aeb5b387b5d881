package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"colabtrack/internal/model"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentStore interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskLocator resolves the project a task lives in.
type TaskLocator interface {
	ProjectOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error)
}

type CommentHandler struct {
	comments CommentStore
	tasks    TaskLocator
	access   projectAccess
	log      *slog.Logger
}

func NewCommentHandler(comments CommentStore, tasks TaskLocator, projects ProjectReader, members AccessChecker, log *slog.Logger) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		tasks:    tasks,
		access:   projectAccess{projects: projects, members: members, log: log},
		log:      log,
	}
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required,max=10000"`
}

type CommentResponse struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name,omitempty"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
}

func newCommentResponse(cm *model.Comment) CommentResponse {
	return CommentResponse{
		ID:         cm.ID.String(),
		TaskID:     cm.TaskID.String(),
		AuthorID:   cm.AuthorID.String(),
		AuthorName: cm.Author.Name,
		Body:       cm.Body,
		CreatedAt:  cm.CreatedAt.Format(time.RFC3339),
	}
}

func (h *CommentHandler) authorizeTask(c *gin.Context, taskID uuid.UUID, requiredRole string) bool {
	projectID, err := h.tasks.ProjectOf(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return false
	}
	return h.access.authorize(c, projectID, requiredRole)
}

func (h *CommentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment body is required"})
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	now := time.Now()
	comment := &model.Comment{
		ID:        uuid.New(),
		TaskID:    taskID,
		AuthorID:  userID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.comments.Create(c.Request.Context(), comment); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newCommentResponse(comment))
}

func (h *CommentHandler) GetByTask(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberViewer) {
		return
	}

	comments, err := h.comments.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	response := make([]CommentResponse, len(comments))
	for i := range comments {
		response[i] = newCommentResponse(&comments[i])
	}
	c.JSON(http.StatusOK, response)
}

// Delete removes a comment. Only its author or an ADMIN may do so.
func (h *CommentHandler) Delete(c *gin.Context) {
	commentID, ok := paramID(c, "id", "comment")
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	comment, err := h.comments.GetByID(c.Request.Context(), commentID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if comment.AuthorID != user.ID && user.Role != model.RoleAdmin {
		writeError(c, h.log, service.ErrForbidden)
		return
	}

	if err := h.comments.Delete(c.Request.Context(), commentID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
