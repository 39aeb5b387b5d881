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

type ProjectStore interface {
	ProjectReader
	Create(ctx context.Context, project *model.Project) error
	GetOwned(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)
	Update(ctx context.Context, project *model.Project) error
}

type MemberStore interface {
	AccessChecker
	AddMember(ctx context.Context, projectID, userID uuid.UUID, role string, at time.Time) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
	GetMembers(ctx context.Context, projectID uuid.UUID) ([]model.ProjectMember, error)
	GetSharedProjects(ctx context.Context, userID uuid.UUID) ([]model.Project, error)
}

type ProjectHandler struct {
	projects ProjectStore
	members  MemberStore
	graph    *service.TaskGraph
	access   projectAccess
	log      *slog.Logger
}

func NewProjectHandler(projects ProjectStore, members MemberStore, graph *service.TaskGraph, log *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		members:  members,
		graph:    graph,
		access:   projectAccess{projects: projects, members: members, log: log},
		log:      log,
	}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
}

type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func newProjectResponse(p *model.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID.String(),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

// Create creates a new project owned by the authenticated user
func (h *ProjectHandler) Create(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project name is required"})
		return
	}

	now := time.Now()
	project := &model.Project{
		ID:          uuid.New(),
		Name:        name,
		Description: req.Description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newProjectResponse(project))
}

// GetAll lists the projects the user owns followed by those shared with them
func (h *ProjectHandler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	owned, err := h.projects.GetOwned(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	shared, err := h.members.GetSharedProjects(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	response := make([]ProjectResponse, 0, len(owned)+len(shared))
	for i := range owned {
		response = append(response, newProjectResponse(&owned[i]))
	}
	for i := range shared {
		response = append(response, newProjectResponse(&shared[i]))
	}

	c.JSON(http.StatusOK, response)
}

func (h *ProjectHandler) GetByID(c *gin.Context) {
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

	c.JSON(http.StatusOK, newProjectResponse(project))
}

func (h *ProjectHandler) Update(c *gin.Context) {
	projectID, ok := paramID(c, "id", "project")
	if !ok {
		return
	}
	if !h.access.authorize(c, projectID, model.MemberEditor) {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project name is required"})
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if req.Name != nil {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	project.UpdatedAt = time.Now()

	if err := h.projects.Update(c.Request.Context(), project); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newProjectResponse(project))
}

// Delete removes the project with all of its tasks. Owner only.
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, ok := paramID(c, "id", "project")
	if !ok {
		return
	}
	if !h.access.isOwner(c, projectID) {
		return
	}

	if err := h.graph.DeleteProject(c.Request.Context(), projectID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
