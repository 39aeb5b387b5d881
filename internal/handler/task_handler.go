package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"colabtrack/internal/model"
	"colabtrack/internal/repository"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaskService is the task graph as the handlers use it; *service.TaskGraph implements it.
type TaskService interface {
	TaskLocator
	CreateTask(ctx context.Context, in service.NewTask) (*model.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, filter repository.TaskFilter) ([]model.Task, error)
	ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	Dependencies(ctx context.Context, taskID uuid.UUID) ([]model.Task, error)
	UpdateTask(ctx context.Context, taskID uuid.UUID, patch service.TaskPatch) (*model.Task, error)
	AddDependency(ctx context.Context, taskID, dependsOnID uuid.UUID) error
	RemoveDependency(ctx context.Context, taskID, dependsOnID uuid.UUID) error
	SetParent(ctx context.Context, taskID uuid.UUID, parentID *uuid.UUID) error
	DeleteTask(ctx context.Context, taskID uuid.UUID) error
	ChangeStatus(ctx context.Context, taskID uuid.UUID, status model.TaskStatus) error
	LogTime(ctx context.Context, taskID uuid.UUID, seconds int64) error
}

type TaskHandler struct {
	graph  TaskService
	access projectAccess
	log    *slog.Logger
}

func NewTaskHandler(graph TaskService, projects ProjectReader, members AccessChecker, log *slog.Logger) *TaskHandler {
	return &TaskHandler{
		graph:  graph,
		access: projectAccess{projects: projects, members: members, log: log},
		log:    log,
	}
}

type CreateTaskRequest struct {
	ProjectID    uuid.UUID  `json:"project_id" binding:"required"`
	ParentTaskID *uuid.UUID `json:"parent_task_id"`
	Title        string     `json:"title" binding:"required,max=255"`
	Description  string     `json:"description"`
	Status       string     `json:"status" binding:"omitempty,task_status"`
	Priority     string     `json:"priority" binding:"omitempty,task_priority"`
	AssigneeID   *uuid.UUID `json:"assignee_id"`
	DueDate      *time.Time `json:"due_date"`
	Checklist    []string   `json:"checklist"`
	Tags         []string   `json:"tags" binding:"omitempty,dive,max=100"`
}

type UpdateTaskRequest struct {
	Title         *string    `json:"title" binding:"omitempty,max=255"`
	Description   *string    `json:"description"`
	Priority      *string    `json:"priority" binding:"omitempty,task_priority"`
	AssigneeID    *uuid.UUID `json:"assignee_id"`
	ClearAssignee bool       `json:"clear_assignee"`
	DueDate       *time.Time `json:"due_date"`
	ClearDueDate  bool       `json:"clear_due_date"`
	Checklist     *[]string  `json:"checklist"`
	Tags          *[]string  `json:"tags" binding:"omitempty,dive,max=100"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,task_status"`
}

type SetParentRequest struct {
	ParentTaskID *uuid.UUID `json:"parent_task_id"`
}

type LogTimeRequest struct {
	Seconds int64 `json:"seconds" binding:"required,min=1"`
}

type TaskResponse struct {
	ID           string   `json:"id"`
	ProjectID    string   `json:"project_id"`
	ParentTaskID *string  `json:"parent_task_id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	AssigneeID   *string  `json:"assignee_id,omitempty"`
	CreatedBy    string   `json:"created_by"`
	DueDate      *string  `json:"due_date,omitempty"`
	TimeSpent    int64    `json:"time_spent"`
	Checklist    []string `json:"checklist"`
	Tags         []string `json:"tags"`
	Dependencies []string `json:"dependencies,omitempty"`
	Subtasks     []string `json:"subtasks,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func newTaskResponse(t *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID.String(),
		ProjectID:    t.ProjectID.String(),
		ParentTaskID: optionalID(t.ParentTaskID),
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		AssigneeID:   optionalID(t.AssigneeID),
		CreatedBy:    t.CreatedBy.String(),
		TimeSpent:    t.TimeSpent,
		Checklist:    t.ChecklistItems(),
		Tags:         t.TagNames(),
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(time.RFC3339)
		resp.DueDate = &due
	}
	for _, id := range t.DependencyIDs() {
		resp.Dependencies = append(resp.Dependencies, id.String())
	}
	for _, sub := range t.Subtasks {
		resp.Subtasks = append(resp.Subtasks, sub.ID.String())
	}
	return resp
}

func newTaskList(tasks []model.Task) []TaskResponse {
	response := make([]TaskResponse, len(tasks))
	for i := range tasks {
		response[i] = newTaskResponse(&tasks[i])
	}
	return response
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// authorizeTask resolves the task's project and checks the acting user's access to it.
func (h *TaskHandler) authorizeTask(c *gin.Context, taskID uuid.UUID, requiredRole string) bool {
	projectID, err := h.graph.ProjectOf(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return false
	}
	return h.access.authorize(c, projectID, requiredRole)
}

func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.access.authorize(c, req.ProjectID, model.MemberEditor) {
		return
	}

	task, err := h.graph.CreateTask(c.Request.Context(), service.NewTask{
		ProjectID:    req.ProjectID,
		CreatedBy:    userID,
		ParentTaskID: req.ParentTaskID,
		AssigneeID:   req.AssigneeID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       model.TaskStatus(req.Status),
		Priority:     model.TaskPriority(req.Priority),
		DueDate:      req.DueDate,
		Checklist:    req.Checklist,
		Tags:         req.Tags,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newTaskResponse(task))
}

// GetByProject lists a project's tasks, optionally filtered by status and assignee
func (h *TaskHandler) GetByProject(c *gin.Context) {
	projectID, ok := paramID(c, "id", "project")
	if !ok {
		return
	}

	filter := repository.TaskFilter{Status: model.TaskStatus(c.Query("status"))}
	if raw := c.Query("assignee_id"); raw != "" {
		assignee, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignee ID format"})
			return
		}
		filter.AssigneeID = &assignee
	}

	if !h.access.authorize(c, projectID, model.MemberViewer) {
		return
	}

	tasks, err := h.graph.ListByProject(c.Request.Context(), projectID, filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newTaskList(tasks))
}

// GetMine lists tasks assigned to the authenticated user
func (h *TaskHandler) GetMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	tasks, err := h.graph.ListByAssignee(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newTaskList(tasks))
}

func (h *TaskHandler) GetByID(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberViewer) {
		return
	}

	task, err := h.graph.Get(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *TaskHandler) Update(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	patch := service.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		AssigneeID:    req.AssigneeID,
		ClearAssignee: req.ClearAssignee,
		DueDate:       req.DueDate,
		ClearDueDate:  req.ClearDueDate,
	}
	if req.Priority != nil {
		priority := model.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}
	if req.Checklist != nil {
		patch.Checklist = append([]string{}, *req.Checklist...)
	}
	if req.Tags != nil {
		patch.Tags = append([]string{}, *req.Tags...)
	}

	task, err := h.graph.UpdateTask(c.Request.Context(), taskID, patch)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(task))
}

// Delete removes the task with its subtasks, comments and attachments
func (h *TaskHandler) Delete(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	if err := h.graph.DeleteTask(c.Request.Context(), taskID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	if err := h.graph.ChangeStatus(c.Request.Context(), taskID, model.TaskStatus(req.Status)); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": taskID.String(), "status": req.Status})
}

// SetParent moves the task under another task of the same project, or to the top level
// when parent_task_id is null
func (h *TaskHandler) SetParent(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}

	var req SetParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	if err := h.graph.SetParent(c.Request.Context(), taskID, req.ParentTaskID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": taskID.String(), "parent_task_id": optionalID(req.ParentTaskID)})
}

func (h *TaskHandler) AddDependency(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	dependencyID, ok := paramID(c, "dependency_id", "dependency")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}
	// the user must at least see the task being depended on
	if !h.authorizeTask(c, dependencyID, model.MemberViewer) {
		return
	}

	if err := h.graph.AddDependency(c.Request.Context(), taskID, dependencyID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) RemoveDependency(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	dependencyID, ok := paramID(c, "dependency_id", "dependency")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	if err := h.graph.RemoveDependency(c.Request.Context(), taskID, dependencyID); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) GetDependencies(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberViewer) {
		return
	}

	deps, err := h.graph.Dependencies(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newTaskList(deps))
}

// LogTime adds tracked seconds to the task
func (h *TaskHandler) LogTime(c *gin.Context) {
	taskID, ok := paramID(c, "id", "task")
	if !ok {
		return
	}

	var req LogTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.authorizeTask(c, taskID, model.MemberEditor) {
		return
	}

	if err := h.graph.LogTime(c.Request.Context(), taskID, req.Seconds); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
