package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"colabtrack/internal/model"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
)

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type ProjectMemberHandler struct {
	projects ProjectReader
	members  MemberStore
	users    UserFinder
	access   projectAccess
	log      *slog.Logger
}

func NewProjectMemberHandler(projects ProjectReader, members MemberStore, users UserFinder, log *slog.Logger) *ProjectMemberHandler {
	return &ProjectMemberHandler{
		projects: projects,
		members:  members,
		users:    users,
		access:   projectAccess{projects: projects, members: members, log: log},
		log:      log,
	}
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=viewer editor"`
}

type MemberResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	IsOwner bool   `json:"is_owner"`
}

// AddMember grants a registered user access to the project by email
func (h *ProjectMemberHandler) AddMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "id", "project")
	if !ok {
		return
	}
	if !h.access.isOwner(c, projectID) {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	target, err := h.users.FindByEmail(c.Request.Context(), service.NormalizeEmail(req.Email))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if target.ID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot share project with yourself"})
		return
	}

	if err := h.members.AddMember(c.Request.Context(), projectID, target.ID, req.Role, time.Now()); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, MemberResponse{
		UserID: target.ID.String(),
		Email:  target.Email,
		Name:   target.Name,
		Role:   req.Role,
	})
}

func (h *ProjectMemberHandler) RemoveMember(c *gin.Context) {
	projectID, ok := paramID(c, "id", "project")
	if !ok {
		return
	}
	targetID, ok := paramID(c, "user_id", "user")
	if !ok {
		return
	}
	if !h.access.isOwner(c, projectID) {
		return
	}

	if err := h.members.RemoveMember(c.Request.Context(), projectID, targetID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetMembers lists the owner followed by every member of the project
func (h *ProjectMemberHandler) GetMembers(c *gin.Context) {
	projectID, ok := paramID(c, "id", "project")
	if !ok {
		return
	}
	if !h.access.authorize(c, projectID, model.MemberViewer) {
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	members, err := h.members.GetMembers(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	response := make([]MemberResponse, 0, len(members)+1)
	response = append(response, MemberResponse{
		UserID:  project.OwnerID.String(),
		Email:   project.Owner.Email,
		Name:    project.Owner.Name,
		Role:    "owner",
		IsOwner: true,
	})
	for _, m := range members {
		response = append(response, MemberResponse{
			UserID: m.UserID.String(),
			Email:  m.User.Email,
			Name:   m.User.Name,
			Role:   m.Role,
		})
	}

	c.JSON(http.StatusOK, response)
}
