package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"colabtrack/internal/model"
)

// AttachmentStore is the persistence surface of attachment version chains.
type AttachmentStore interface {
	Transaction(ctx context.Context, fn func(tx AttachmentStore) error) error
	LockTask(ctx context.Context, taskID uuid.UUID) error
	LockForVersioning(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error)

	Create(ctx context.Context, attachment *model.FileAttachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.FileAttachment, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.FileAttachment, error)
	VersionsOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	LockVersionsOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

var _ AttachmentStore = (*AttachmentRepository)(nil)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Transaction(ctx context.Context, fn func(tx AttachmentStore) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AttachmentRepository{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return translate(err, nil)
}

// LockTask takes a share lock on the task row so it cannot be deleted while a
// version is being attached to it.
func (r *AttachmentRepository) LockTask(ctx context.Context, taskID uuid.UUID) error {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id = ?", taskID).
		Pluck("id", &ids).Error
	if err != nil {
		return translate(err, nil)
	}
	if len(ids) == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// LockForVersioning loads an attachment and locks its row for the rest of the transaction.
func (r *AttachmentRepository) LockForVersioning(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error) {
	var attachment model.FileAttachment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attachment, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, ErrAttachmentNotFound)
	}
	return &attachment, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.FileAttachment) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(attachment).Error, nil)
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error) {
	var attachment model.FileAttachment
	if err := r.db.WithContext(ctx).First(&attachment, "id = ?", id).Error; err != nil {
		return nil, translate(err, ErrAttachmentNotFound)
	}
	return &attachment, nil
}

func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.FileAttachment, error) {
	var attachments []model.FileAttachment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("file_name, version").
		Find(&attachments).Error
	return attachments, translate(err, nil)
}

func (r *AttachmentRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.FileAttachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var attachments []model.FileAttachment
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("version, created_at").
		Find(&attachments).Error
	return attachments, translate(err, nil)
}

// VersionsOf returns the direct successor versions of any of ids
func (r *AttachmentRepository) VersionsOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.FileAttachment{}).
		Where("parent_file_id IN ?", ids).
		Pluck("id", &out).Error
	return out, translate(err, nil)
}

// LockVersionsOf is VersionsOf taking row locks on the successors, in id order, so no
// new version can be attached to them before the transaction ends.
func (r *AttachmentRepository) LockVersionsOf(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.FileAttachment{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("parent_file_id IN ?", ids).
		Order("id").
		Pluck("id", &out).Error
	return out, translate(err, nil)
}

func (r *AttachmentRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.FileAttachment{})
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
