package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"colabtrack/internal/model"
	"colabtrack/internal/repository"
)

// Column limits of the tasks and task_tags tables.
const (
	maxTitleLength = 255
	maxTagLength   = 100
)

type GraphConfig struct {
	// AllowCrossProjectDependencies lets a task depend on a task of another project.
	AllowCrossProjectDependencies bool
}

// TaskGraph owns task creation, the parent/subtask tree and dependency edges.
// Every mutation runs in one store transaction holding the affected project locks.
type TaskGraph struct {
	store repository.TaskStore
	cfg   GraphConfig
	log   *slog.Logger
	now   func() time.Time
}

func NewTaskGraph(store repository.TaskStore, cfg GraphConfig, log *slog.Logger) *TaskGraph {
	return &TaskGraph{store: store, cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (g *TaskGraph) WithClock(now func() time.Time) *TaskGraph {
	g.now = now
	return g
}

type NewTask struct {
	ProjectID    uuid.UUID
	CreatedBy    uuid.UUID
	ParentTaskID *uuid.UUID
	AssigneeID   *uuid.UUID
	Title        string
	Description  string
	Status       model.TaskStatus
	Priority     model.TaskPriority
	DueDate      *time.Time
	Checklist    []string
	Tags         []string
}

// TaskPatch lists the fields UpdateTask should change; nil means unchanged.
// Checklist and Tags replace the stored values when non-nil.
type TaskPatch struct {
	Title         *string
	Description   *string
	Priority      *model.TaskPriority
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	DueDate       *time.Time
	ClearDueDate  bool
	Checklist     []string
	Tags          []string
}

func (g *TaskGraph) CreateTask(ctx context.Context, in NewTask) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if !validTitle(title) || !validTags(in.Tags) {
		return nil, ErrInvalidInput
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	now := g.now()
	task := &model.Task{
		ID:           uuid.New(),
		ProjectID:    in.ProjectID,
		ParentTaskID: in.ParentTaskID,
		Title:        title,
		Description:  in.Description,
		Status:       in.Status,
		Priority:     in.Priority,
		AssigneeID:   in.AssigneeID,
		CreatedBy:    in.CreatedBy,
		DueDate:      in.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	task.Checklist = model.NewChecklist(task.ID, in.Checklist)
	task.Tags = model.NewTags(task.ID, in.Tags)

	err := g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		if err := tx.LockProjects(ctx, in.ProjectID); err != nil {
			return err
		}
		if in.ParentTaskID != nil {
			parent, err := tx.GetByID(ctx, *in.ParentTaskID)
			if err != nil {
				return err
			}
			if parent.ProjectID != in.ProjectID {
				return ErrCrossProjectParent
			}
		}
		return tx.Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("task created", "task_id", task.ID, "project_id", task.ProjectID)
	return task, nil
}

func (g *TaskGraph) Get(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	return g.store.GetDetailed(ctx, id)
}

// ProjectOf returns the project a task belongs to.
func (g *TaskGraph) ProjectOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	task, err := g.store.GetByID(ctx, taskID)
	if err != nil {
		return uuid.Nil, err
	}
	return task.ProjectID, nil
}

func (g *TaskGraph) ListByProject(ctx context.Context, projectID uuid.UUID, filter repository.TaskFilter) ([]model.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return g.store.ListByProject(ctx, projectID, filter)
}

func (g *TaskGraph) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	return g.store.ListByAssignee(ctx, userID)
}

func (g *TaskGraph) Dependencies(ctx context.Context, taskID uuid.UUID) ([]model.Task, error) {
	if _, err := g.store.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return g.store.ListDependencies(ctx, taskID)
}

// UpdateTask applies a patch of editable fields and returns the updated task.
func (g *TaskGraph) UpdateTask(ctx context.Context, taskID uuid.UUID, patch TaskPatch) (*model.Task, error) {
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if patch.Title != nil && !validTitle(strings.TrimSpace(*patch.Title)) {
		return nil, ErrInvalidInput
	}
	if !validTags(patch.Tags) {
		return nil, ErrInvalidInput
	}

	err := g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		task, err := tx.GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			task.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Priority != nil {
			task.Priority = *patch.Priority
		}
		switch {
		case patch.ClearAssignee:
			task.AssigneeID = nil
		case patch.AssigneeID != nil:
			task.AssigneeID = patch.AssigneeID
		}
		switch {
		case patch.ClearDueDate:
			task.DueDate = nil
		case patch.DueDate != nil:
			task.DueDate = patch.DueDate
		}
		task.UpdatedAt = g.now()

		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		if patch.Checklist != nil {
			if err := tx.ReplaceChecklist(ctx, taskID, model.NewChecklist(taskID, patch.Checklist)); err != nil {
				return err
			}
		}
		if patch.Tags != nil {
			if err := tx.ReplaceTags(ctx, taskID, model.NewTags(taskID, patch.Tags)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g.store.GetDetailed(ctx, taskID)
}

func validTitle(title string) bool {
	return title != "" && utf8.RuneCountInString(title) <= maxTitleLength
}

func validTags(tags []string) bool {
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > maxTagLength {
			return false
		}
	}
	return true
}

// AddDependency records that taskID depends on dependsOnID. The edge is rejected when
// taskID is already reachable from dependsOnID, since it would close a cycle.
func (g *TaskGraph) AddDependency(ctx context.Context, taskID, dependsOnID uuid.UUID) error {
	if taskID == dependsOnID {
		return ErrCyclicDependency
	}

	err := g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		task, err := tx.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		dependsOn, err := tx.GetByID(ctx, dependsOnID)
		if err != nil {
			return err
		}
		if task.ProjectID != dependsOn.ProjectID && !g.cfg.AllowCrossProjectDependencies {
			return ErrCrossProjectDependency
		}
		if err := tx.LockProjects(ctx, task.ProjectID, dependsOn.ProjectID); err != nil {
			return err
		}

		cyclic, err := reaches(ctx, dependsOnID, taskID, tx.DependenciesOf)
		if err != nil {
			return err
		}
		if cyclic {
			return ErrCyclicDependency
		}

		if err := tx.AddDependency(ctx, taskID, dependsOnID); err != nil {
			return err
		}
		return tx.Touch(ctx, taskID, g.now())
	})
	if err != nil {
		return err
	}

	g.log.Info("dependency added", "task_id", taskID, "depends_on", dependsOnID)
	return nil
}

// RemoveDependency drops the edge if it exists.
func (g *TaskGraph) RemoveDependency(ctx context.Context, taskID, dependsOnID uuid.UUID) error {
	return g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		task, err := tx.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.LockProjects(ctx, task.ProjectID); err != nil {
			return err
		}
		return tx.RemoveDependency(ctx, taskID, dependsOnID)
	})
}

// SetParent moves taskID under parentID, or detaches it when parentID is nil.
func (g *TaskGraph) SetParent(ctx context.Context, taskID uuid.UUID, parentID *uuid.UUID) error {
	if parentID != nil && *parentID == taskID {
		return ErrSelfParent
	}

	err := g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		task, err := tx.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.LockProjects(ctx, task.ProjectID); err != nil {
			return err
		}

		if parentID != nil {
			parent, err := tx.GetByID(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent.ProjectID != task.ProjectID {
				return ErrCrossProjectParent
			}
			descendant, err := reaches(ctx, taskID, *parentID, tx.ChildrenOf)
			if err != nil {
				return err
			}
			if descendant {
				return ErrCyclicHierarchy
			}
		}

		return tx.SetParent(ctx, taskID, parentID, g.now())
	})
	if err != nil {
		return err
	}

	g.log.Info("task parent set", "task_id", taskID, "parent_id", parentID)
	return nil
}

// DeleteTask removes a task with all of its subtasks, their comments, attachments,
// checklist and tags, after detaching every dependency edge that touches them.
func (g *TaskGraph) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	var deleted int
	err := g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		task, err := tx.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.LockProjects(ctx, task.ProjectID); err != nil {
			return err
		}

		ids, err := collect(ctx, taskID, tx.ChildrenOf)
		if err != nil {
			return err
		}
		deleted = len(ids)
		return cascadeDelete(ctx, tx, ids)
	})
	if err != nil {
		return err
	}

	g.log.Info("task deleted", "task_id", taskID, "tasks_removed", deleted)
	return nil
}

// DeleteProject removes every task of a project with the same cascade as DeleteTask,
// then the project and its memberships.
func (g *TaskGraph) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	err := g.store.Transaction(ctx, func(tx repository.TaskStore) error {
		if err := tx.LockProjects(ctx, projectID); err != nil {
			return err
		}
		ids, err := tx.ProjectTaskIDs(ctx, projectID)
		if err != nil {
			return err
		}
		if err := cascadeDelete(ctx, tx, ids); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}

	g.log.Info("project deleted", "project_id", projectID)
	return nil
}

func cascadeDelete(ctx context.Context, tx repository.TaskStore, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.DetachDependencies(ctx, ids); err != nil {
		return err
	}
	if err := tx.DeleteComments(ctx, ids); err != nil {
		return err
	}
	if err := tx.DeleteAttachments(ctx, ids); err != nil {
		return err
	}
	return tx.DeleteTasks(ctx, ids)
}

// ChangeStatus moves a task to any valid status; no workflow order is enforced.
func (g *TaskGraph) ChangeStatus(ctx context.Context, taskID uuid.UUID, status model.TaskStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if err := g.store.UpdateStatus(ctx, taskID, status, g.now()); err != nil {
		return err
	}
	g.log.Info("task status changed", "task_id", taskID, "status", status)
	return nil
}

// LogTime adds tracked seconds to a task.
func (g *TaskGraph) LogTime(ctx context.Context, taskID uuid.UUID, seconds int64) error {
	if seconds <= 0 {
		return ErrInvalidInput
	}
	return g.store.AddTimeSpent(ctx, taskID, seconds, g.now())
}
