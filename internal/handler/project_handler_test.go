package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"colabtrack/internal/handler"
	"colabtrack/internal/model"
	"colabtrack/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	project := args.Get(0)
	if project == nil {
		return nil, args.Error(1)
	}
	return project.(*model.Project), args.Error(1)
}

func (m *MockProjectStore) Create(ctx context.Context, project *model.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockProjectStore) GetOwned(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *MockProjectStore) Update(ctx context.Context, project *model.Project) error {
	return m.Called(ctx, project).Error(0)
}

type MockMemberStore struct {
	mock.Mock
}

func (m *MockMemberStore) CheckAccess(ctx context.Context, projectID, userID uuid.UUID, requiredRole string) (bool, error) {
	args := m.Called(ctx, projectID, userID, requiredRole)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberStore) AddMember(ctx context.Context, projectID, userID uuid.UUID, role string, at time.Time) error {
	return m.Called(ctx, projectID, userID, role, at).Error(0)
}

func (m *MockMemberStore) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return m.Called(ctx, projectID, userID).Error(0)
}

func (m *MockMemberStore) GetMembers(ctx context.Context, projectID uuid.UUID) ([]model.ProjectMember, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]model.ProjectMember), args.Error(1)
}

func (m *MockMemberStore) GetSharedProjects(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Project), args.Error(1)
}

type projectFixture struct {
	router   *gin.Engine
	projects *MockProjectStore
	members  *MockMemberStore
	users    *MockUserRepository
	owner    *model.User
	project  *model.Project
}

func setupProjectTest(t *testing.T, actor *model.User, owner *model.User) *projectFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &projectFixture{
		projects: new(MockProjectStore),
		members:  new(MockMemberStore),
		users:    new(MockUserRepository),
		owner:    owner,
		project: &model.Project{
			ID:      uuid.New(),
			Name:    "Launch",
			OwnerID: owner.ID,
			Owner:   *owner,
		},
	}
	f.projects.On("GetByID", mock.Anything, f.project.ID).Return(f.project, nil)

	projectHandler := handler.NewProjectHandler(f.projects, f.members, nil, discardLogger)
	memberHandler := handler.NewProjectMemberHandler(f.projects, f.members, f.users, discardLogger)

	r := gin.New()
	r.Use(asUser(actor))
	r.GET("/api/projects", projectHandler.GetAll)
	r.GET("/api/projects/:id", projectHandler.GetByID)
	r.PUT("/api/projects/:id", projectHandler.Update)
	r.DELETE("/api/projects/:id", projectHandler.Delete)
	r.POST("/api/projects/:id/members", memberHandler.AddMember)
	r.GET("/api/projects/:id/members", memberHandler.GetMembers)
	f.router = r
	return f
}

func TestProjectGetByID_Access(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	member := newStoredUser(t, "member@example.com", "password123")
	admin := newStoredUser(t, "admin@example.com", "password123")
	admin.Role = model.RoleAdmin

	tests := []struct {
		name       string
		actor      *model.User
		member     *bool
		wantStatus int
	}{
		{name: "owner", actor: owner, wantStatus: http.StatusOK},
		{name: "admin", actor: admin, wantStatus: http.StatusOK},
		{name: "viewer member", actor: member, member: boolPtr(true), wantStatus: http.StatusOK},
		{name: "stranger", actor: member, member: boolPtr(false), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := setupProjectTest(t, tt.actor, owner)
			if tt.member != nil {
				f.members.On("CheckAccess", mock.Anything, f.project.ID, tt.actor.ID, model.MemberViewer).
					Return(*tt.member, nil)
			}

			// Act
			resp := doJSON(f.router, http.MethodGet, "/api/projects/"+f.project.ID.String(), nil)

			// Assert
			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.member == nil {
				f.members.AssertNotCalled(t, "CheckAccess", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			f.members.AssertExpectations(t)
		})
	}
}

func TestProjectGetByID_NotFound(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	f := setupProjectTest(t, owner, owner)
	missing := uuid.New()
	f.projects.On("GetByID", mock.Anything, missing).Return(nil, repository.ErrProjectNotFound)

	resp := doJSON(f.router, http.MethodGet, "/api/projects/"+missing.String(), nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Project not found", errorOf(t, resp))
}

func TestProjectUpdate_ViewerIsRejected(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	viewer := newStoredUser(t, "viewer@example.com", "password123")
	f := setupProjectTest(t, viewer, owner)
	f.members.On("CheckAccess", mock.Anything, f.project.ID, viewer.ID, model.MemberEditor).Return(false, nil)

	resp := doJSON(f.router, http.MethodPut, "/api/projects/"+f.project.ID.String(), map[string]string{"name": "Renamed"})

	assert.Equal(t, http.StatusForbidden, resp.Code)
	f.projects.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProjectUpdate_Editor(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	editor := newStoredUser(t, "editor@example.com", "password123")
	f := setupProjectTest(t, editor, owner)
	f.members.On("CheckAccess", mock.Anything, f.project.ID, editor.ID, model.MemberEditor).Return(true, nil)
	f.projects.On("Update", mock.Anything, f.project).Return(nil)

	resp := doJSON(f.router, http.MethodPut, "/api/projects/"+f.project.ID.String(), map[string]string{"name": "  Renamed "})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body handler.ProjectResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Renamed", body.Name)
	f.projects.AssertExpectations(t)
}

func TestProjectDelete_OnlyOwner(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	editor := newStoredUser(t, "editor@example.com", "password123")
	f := setupProjectTest(t, editor, owner)

	resp := doJSON(f.router, http.MethodDelete, "/api/projects/"+f.project.ID.String(), nil)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "Only the project owner can do this", errorOf(t, resp))
}

func TestProjectGetAll_OwnedThenShared(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	f := setupProjectTest(t, owner, owner)
	shared := model.Project{ID: uuid.New(), Name: "Shared", OwnerID: uuid.New()}
	f.projects.On("GetOwned", mock.Anything, owner.ID).Return([]model.Project{*f.project}, nil)
	f.members.On("GetSharedProjects", mock.Anything, owner.ID).Return([]model.Project{shared}, nil)

	resp := doJSON(f.router, http.MethodGet, "/api/projects", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	var body []handler.ProjectResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "Launch", body[0].Name)
	assert.Equal(t, "Shared", body[1].Name)
}

func TestAddMember(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	guest := newStoredUser(t, "guest@example.com", "password123")

	t.Run("adds by email", func(t *testing.T) {
		f := setupProjectTest(t, owner, owner)
		f.users.On("FindByEmail", mock.Anything, "guest@example.com").Return(guest, nil)
		f.members.On("AddMember", mock.Anything, f.project.ID, guest.ID, model.MemberEditor, mock.AnythingOfType("time.Time")).
			Return(nil)

		resp := doJSON(f.router, http.MethodPost, "/api/projects/"+f.project.ID.String()+"/members",
			handler.AddMemberRequest{Email: "Guest@Example.com", Role: "editor"})

		assert.Equal(t, http.StatusOK, resp.Code)
		f.members.AssertExpectations(t)
	})

	t.Run("rejects self", func(t *testing.T) {
		f := setupProjectTest(t, owner, owner)
		f.users.On("FindByEmail", mock.Anything, "owner@example.com").Return(owner, nil)

		resp := doJSON(f.router, http.MethodPost, "/api/projects/"+f.project.ID.String()+"/members",
			handler.AddMemberRequest{Email: "owner@example.com", Role: "viewer"})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		f.members.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown role", func(t *testing.T) {
		f := setupProjectTest(t, owner, owner)

		resp := doJSON(f.router, http.MethodPost, "/api/projects/"+f.project.ID.String()+"/members",
			map[string]string{"email": "guest@example.com", "role": "owner"})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setupProjectTest(t, owner, owner)
		f.users.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, repository.ErrUserNotFound)

		resp := doJSON(f.router, http.MethodPost, "/api/projects/"+f.project.ID.String()+"/members",
			handler.AddMemberRequest{Email: "nobody@example.com", Role: "viewer"})

		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "User not found", errorOf(t, resp))
	})
}

func TestGetMembers_OwnerFirst(t *testing.T) {
	owner := newStoredUser(t, "owner@example.com", "password123")
	guest := newStoredUser(t, "guest@example.com", "password123")
	f := setupProjectTest(t, owner, owner)
	f.members.On("GetMembers", mock.Anything, f.project.ID).Return([]model.ProjectMember{
		{ProjectID: f.project.ID, UserID: guest.ID, Role: model.MemberViewer, User: *guest},
	}, nil)

	resp := doJSON(f.router, http.MethodGet, "/api/projects/"+f.project.ID.String()+"/members", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	var body []handler.MemberResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.True(t, body[0].IsOwner)
	assert.Equal(t, "owner@example.com", body[0].Email)
	assert.Equal(t, "guest@example.com", body[1].Email)
	assert.Equal(t, model.MemberViewer, body[1].Role)
}

func boolPtr(b bool) *bool { return &b }
