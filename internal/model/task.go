package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusReview     TaskStatus = "REVIEW"
	StatusDone       TaskStatus = "DONE"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID    uuid.UUID    `gorm:"type:uuid;not null;index"`
	ParentTaskID *uuid.UUID   `gorm:"type:uuid;index"`
	Title        string       `gorm:"not null"`
	Description  string       `gorm:"type:text"`
	Status       TaskStatus   `gorm:"type:varchar(20);not null"`
	Priority     TaskPriority `gorm:"type:varchar(20);not null"`
	AssigneeID   *uuid.UUID   `gorm:"type:uuid;index"`
	CreatedBy    uuid.UUID    `gorm:"type:uuid;not null"`
	DueDate      *time.Time
	TimeSpent    int64     `gorm:"not null"` // seconds
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false"`

	Dependencies []*Task          `gorm:"many2many:task_dependencies;joinForeignKey:TaskID;joinReferences:DependencyID"`
	Subtasks     []Task           `gorm:"foreignKey:ParentTaskID"`
	Checklist    []ChecklistItem  `gorm:"foreignKey:TaskID"`
	Tags         []TaskTag        `gorm:"foreignKey:TaskID"`
	Comments     []Comment        `gorm:"foreignKey:TaskID"`
	Attachments  []FileAttachment `gorm:"foreignKey:TaskID"`
}

// ChecklistItem is one line of a task checklist; Position (1-based) keeps the order.
type ChecklistItem struct {
	TaskID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position int       `gorm:"primaryKey"`
	Item     string    `gorm:"not null"`
}

func (ChecklistItem) TableName() string { return "task_checklist" }

type TaskTag struct {
	TaskID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tag    string    `gorm:"primaryKey"`
}

func (TaskTag) TableName() string { return "task_tags" }

// TaskDependency is one edge of the dependency graph: TaskID depends on DependencyID.
type TaskDependency struct {
	TaskID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	DependencyID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (TaskDependency) TableName() string { return "task_dependencies" }

// NewChecklist converts ordered strings into checklist rows for the given task.
func NewChecklist(taskID uuid.UUID, items []string) []ChecklistItem {
	out := make([]ChecklistItem, 0, len(items))
	for i, item := range items {
		out = append(out, ChecklistItem{TaskID: taskID, Position: i + 1, Item: item})
	}
	return out
}

// NewTags converts tag names into tag rows, dropping duplicates and empty names.
func NewTags(taskID uuid.UUID, names []string) []TaskTag {
	seen := make(map[string]struct{}, len(names))
	out := make([]TaskTag, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, TaskTag{TaskID: taskID, Tag: name})
	}
	return out
}

func (t *Task) ChecklistItems() []string {
	items := make([]string, len(t.Checklist))
	for i, c := range t.Checklist {
		items[i] = c.Item
	}
	return items
}

func (t *Task) TagNames() []string {
	names := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		names[i] = tag.Tag
	}
	return names
}

func (t *Task) DependencyIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(t.Dependencies))
	for i, d := range t.Dependencies {
		ids[i] = d.ID
	}
	return ids
}
