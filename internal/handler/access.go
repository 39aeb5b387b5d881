package handler

import (
	"context"
	"log/slog"
	"net/http"

	"colabtrack/internal/middleware"
	"colabtrack/internal/model"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
}

type AccessChecker interface {
	CheckAccess(ctx context.Context, projectID, userID uuid.UUID, requiredRole string) (bool, error)
}

// projectAccess decides whether the acting user may read or write a project.
// Owners and editors write, viewers read, ADMIN users do anything.
type projectAccess struct {
	projects ProjectReader
	members  AccessChecker
	log      *slog.Logger
}

// authorize writes the error response itself and returns false when access is denied.
func (a projectAccess) authorize(c *gin.Context, projectID uuid.UUID, requiredRole string) bool {
	user, ok := currentUser(c)
	if !ok {
		return false
	}

	project, err := a.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, a.log, err)
		return false
	}
	if user.Role == model.RoleAdmin || project.OwnerID == user.ID {
		return true
	}

	allowed, err := a.members.CheckAccess(c.Request.Context(), projectID, user.ID, requiredRole)
	if err != nil {
		writeError(c, a.log, err)
		return false
	}
	if !allowed {
		writeError(c, a.log, service.ErrForbidden)
		return false
	}
	return true
}

// isOwner reports whether the acting user owns the project or is an ADMIN.
func (a projectAccess) isOwner(c *gin.Context, projectID uuid.UUID) bool {
	user, ok := currentUser(c)
	if !ok {
		return false
	}
	project, err := a.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, a.log, err)
		return false
	}
	if project.OwnerID != user.ID && user.Role != model.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the project owner can do this"})
		return false
	}
	return true
}

func currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return nil, false
	}
	return user, true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return uuid.Nil, false
	}
	return id, true
}

// paramID parses a uuid path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID format"})
		return uuid.Nil, false
	}
	return id, true
}
