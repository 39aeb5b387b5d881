package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"colabtrack/internal/model"
)

// TaskFilter narrows project task listings. Zero values match everything.
type TaskFilter struct {
	Status     model.TaskStatus
	AssigneeID *uuid.UUID
}

// TaskStore is the persistence surface of the task graph. Every method is safe to call
// on the store handed to a Transaction callback, where it joins that transaction.
type TaskStore interface {
	Transaction(ctx context.Context, fn func(tx TaskStore) error) error
	LockProjects(ctx context.Context, ids ...uuid.UUID) error

	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	GetDetailed(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, filter TaskFilter) ([]model.Task, error)
	ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	ReplaceChecklist(ctx context.Context, taskID uuid.UUID, items []model.ChecklistItem) error
	ReplaceTags(ctx context.Context, taskID uuid.UUID, tags []model.TaskTag) error
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status model.TaskStatus, at time.Time) error
	AddTimeSpent(ctx context.Context, taskID uuid.UUID, seconds int64, at time.Time) error
	Touch(ctx context.Context, taskID uuid.UUID, at time.Time) error

	DependenciesOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	ListDependencies(ctx context.Context, taskID uuid.UUID) ([]model.Task, error)
	AddDependency(ctx context.Context, taskID, dependencyID uuid.UUID) error
	RemoveDependency(ctx context.Context, taskID, dependencyID uuid.UUID) error

	ChildrenOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	ProjectTaskIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
	SetParent(ctx context.Context, taskID uuid.UUID, parentID *uuid.UUID, at time.Time) error

	DetachDependencies(ctx context.Context, ids []uuid.UUID) error
	DeleteComments(ctx context.Context, taskIDs []uuid.UUID) error
	DeleteAttachments(ctx context.Context, taskIDs []uuid.UUID) error
	DeleteTasks(ctx context.Context, ids []uuid.UUID) error
	DeleteProject(ctx context.Context, projectID uuid.UUID) error
}

var _ TaskStore = (*TaskRepository)(nil)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Transaction runs fn at READ COMMITTED; fn's store shares the transaction.
func (r *TaskRepository) Transaction(ctx context.Context, fn func(tx TaskStore) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return translate(err, nil)
}

// LockProjects takes row locks on the given projects in id order so concurrent graph
// edits on the same project serialize.
func (r *TaskRepository) LockProjects(ctx context.Context, ids ...uuid.UUID) error {
	var locked []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Project{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &locked).Error
	if err != nil {
		return translate(err, nil)
	}
	if len(locked) < len(uniqueIDs(ids)) {
		return ErrProjectNotFound
	}
	return nil
}

// Create adds a new task together with its checklist and tags
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(task).Error; err != nil {
		return translate(err, nil)
	}
	if len(task.Checklist) > 0 {
		if err := db.Create(&task.Checklist).Error; err != nil {
			return translate(err, nil)
		}
	}
	if len(task.Tags) > 0 {
		if err := db.Create(&task.Tags).Error; err != nil {
			return translate(err, nil)
		}
	}
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, translate(err, ErrTaskNotFound)
	}
	return &task, nil
}

// GetDetailed retrieves a task with dependencies, subtasks, checklist and tags loaded
func (r *TaskRepository) GetDetailed(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Preload("Dependencies").
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Checklist", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tag") }).
		First(&task, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, ErrTaskNotFound)
	}
	return &task, nil
}

// ListByProject retrieves the tasks of a project with checklist and tags
func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tag") }).
		Where("project_id = ?", projectID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *filter.AssigneeID)
	}

	var tasks []model.Task
	if err := q.Order("created_at").Find(&tasks).Error; err != nil {
		return nil, translate(err, nil)
	}
	return tasks, nil
}

func (r *TaskRepository) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("assignee_id = ?", userID).
		Order("due_date NULLS LAST, created_at").
		Find(&tasks).Error
	if err != nil {
		return nil, translate(err, nil)
	}
	return tasks, nil
}

// Update writes the editable scalar fields of a task
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	return r.updateColumns(ctx, task.ID, map[string]interface{}{
		"title":       task.Title,
		"description": task.Description,
		"priority":    task.Priority,
		"assignee_id": task.AssigneeID,
		"due_date":    task.DueDate,
		"updated_at":  task.UpdatedAt,
	})
}

func (r *TaskRepository) ReplaceChecklist(ctx context.Context, taskID uuid.UUID, items []model.ChecklistItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ?", taskID).Delete(&model.ChecklistItem{}).Error; err != nil {
		return translate(err, nil)
	}
	if len(items) == 0 {
		return nil
	}
	return translate(db.Create(&items).Error, nil)
}

func (r *TaskRepository) ReplaceTags(ctx context.Context, taskID uuid.UUID, tags []model.TaskTag) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ?", taskID).Delete(&model.TaskTag{}).Error; err != nil {
		return translate(err, nil)
	}
	if len(tags) == 0 {
		return nil
	}
	return translate(db.Create(&tags).Error, nil)
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, taskID uuid.UUID, status model.TaskStatus, at time.Time) error {
	return r.updateColumns(ctx, taskID, map[string]interface{}{
		"status":     status,
		"updated_at": at,
	})
}

func (r *TaskRepository) AddTimeSpent(ctx context.Context, taskID uuid.UUID, seconds int64, at time.Time) error {
	return r.updateColumns(ctx, taskID, map[string]interface{}{
		"time_spent": gorm.Expr("time_spent + ?", seconds),
		"updated_at": at,
	})
}

func (r *TaskRepository) Touch(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	return r.updateColumns(ctx, taskID, map[string]interface{}{"updated_at": at})
}

func (r *TaskRepository) SetParent(ctx context.Context, taskID uuid.UUID, parentID *uuid.UUID, at time.Time) error {
	return r.updateColumns(ctx, taskID, map[string]interface{}{
		"parent_task_id": parentID,
		"updated_at":     at,
	})
}

func (r *TaskRepository) updateColumns(ctx context.Context, taskID uuid.UUID, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(values)
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DependenciesOf returns the distinct tasks that any of ids depends on directly
func (r *TaskRepository) DependenciesOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.TaskDependency{}).
		Distinct("dependency_id").
		Where("task_id IN ?", ids).
		Pluck("dependency_id", &out).Error
	return out, translate(err, nil)
}

func (r *TaskRepository) ListDependencies(ctx context.Context, taskID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Joins("JOIN task_dependencies ON task_dependencies.dependency_id = tasks.id").
		Where("task_dependencies.task_id = ?", taskID).
		Order("tasks.created_at").
		Find(&tasks).Error
	return tasks, translate(err, nil)
}

// AddDependency inserts the edge taskID -> dependencyID; an existing edge is left alone
func (r *TaskRepository) AddDependency(ctx context.Context, taskID, dependencyID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Exec(
		"INSERT INTO task_dependencies (task_id, dependency_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		taskID, dependencyID,
	).Error, nil)
}

func (r *TaskRepository) RemoveDependency(ctx context.Context, taskID, dependencyID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Exec(
		"DELETE FROM task_dependencies WHERE task_id = ? AND dependency_id = ?",
		taskID, dependencyID,
	).Error, nil)
}

// ChildrenOf returns the direct subtasks of any of ids
func (r *TaskRepository) ChildrenOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("parent_task_id IN ?", ids).
		Pluck("id", &out).Error
	return out, translate(err, nil)
}

func (r *TaskRepository) ProjectTaskIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("project_id = ?", projectID).
		Pluck("id", &out).Error
	return out, translate(err, nil)
}

// DetachDependencies removes every dependency edge that starts or ends at one of ids
func (r *TaskRepository) DetachDependencies(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).
		Where("task_id IN ? OR dependency_id IN ?", ids, ids).
		Delete(&model.TaskDependency{}).Error, nil)
}

func (r *TaskRepository) DeleteComments(ctx context.Context, taskIDs []uuid.UUID) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).
		Where("task_id IN ?", taskIDs).
		Delete(&model.Comment{}).Error, nil)
}

// DeleteAttachments removes every version of every attachment of the given tasks
func (r *TaskRepository) DeleteAttachments(ctx context.Context, taskIDs []uuid.UUID) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).
		Where("task_id IN ?", taskIDs).
		Delete(&model.FileAttachment{}).Error, nil)
}

// DeleteTasks removes the task rows with their checklist and tags. Edges, comments and
// attachments must be removed first.
func (r *TaskRepository) DeleteTasks(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id IN ?", ids).Delete(&model.ChecklistItem{}).Error; err != nil {
		return translate(err, nil)
	}
	if err := db.Where("task_id IN ?", ids).Delete(&model.TaskTag{}).Error; err != nil {
		return translate(err, nil)
	}
	result := db.Where("id IN ?", ids).Delete(&model.Task{})
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteProject removes the project row and its memberships. Tasks must already be gone.
func (r *TaskRepository) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("project_id = ?", projectID).Delete(&model.ProjectMember{}).Error; err != nil {
		return translate(err, nil)
	}
	result := db.Delete(&model.Project{}, "id = ?", projectID)
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
