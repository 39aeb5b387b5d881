package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"colabtrack/internal/model"
	"colabtrack/internal/repository"
)

// FileMeta describes an uploaded blob. FilePath is a reference into external storage.
type FileMeta struct {
	FileName string
	FilePath string
	FileType string
	FileSize int64
}

type Attachments struct {
	store repository.AttachmentStore
	log   *slog.Logger
	now   func() time.Time
}

func NewAttachments(store repository.AttachmentStore, log *slog.Logger) *Attachments {
	return &Attachments{store: store, log: log, now: time.Now}
}

func (a *Attachments) WithClock(now func() time.Time) *Attachments {
	a.now = now
	return a
}

// UploadNewVersion records a file on a task. With a parent, the new row becomes the next
// version of it and must stay on the same task.
func (a *Attachments) UploadNewVersion(ctx context.Context, taskID uuid.UUID, meta FileMeta, uploaderID uuid.UUID, parentFileID *uuid.UUID) (*model.FileAttachment, error) {
	if strings.TrimSpace(meta.FileName) == "" || strings.TrimSpace(meta.FilePath) == "" || meta.FileSize < 0 {
		return nil, ErrInvalidInput
	}

	now := a.now()
	attachment := &model.FileAttachment{
		ID:           uuid.New(),
		TaskID:       taskID,
		UploadedBy:   uploaderID,
		FileName:     meta.FileName,
		FilePath:     meta.FilePath,
		FileType:     meta.FileType,
		FileSize:     meta.FileSize,
		Version:      1,
		ParentFileID: parentFileID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := a.store.Transaction(ctx, func(tx repository.AttachmentStore) error {
		if err := tx.LockTask(ctx, taskID); err != nil {
			return err
		}
		if parentFileID != nil {
			parent, err := tx.LockForVersioning(ctx, *parentFileID)
			if err != nil {
				return err
			}
			if parent.TaskID != taskID {
				return repository.ErrAttachmentNotFound
			}
			attachment.Version = parent.Version + 1
		}
		return tx.Create(ctx, attachment)
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("attachment uploaded",
		"attachment_id", attachment.ID,
		"task_id", taskID,
		"version", attachment.Version,
	)
	return attachment, nil
}

// DeleteAttachment removes an attachment and every later version derived from it.
func (a *Attachments) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	var removed int
	err := a.store.Transaction(ctx, func(tx repository.AttachmentStore) error {
		if _, err := tx.LockForVersioning(ctx, id); err != nil {
			return err
		}
		// every level is locked before its successors are read, so an upload racing
		// the delete either commits first and is collected or waits and then fails
		ids, err := collect(ctx, id, tx.LockVersionsOf)
		if err != nil {
			return err
		}
		removed = len(ids)
		return tx.DeleteByIDs(ctx, ids)
	})
	if err != nil {
		return err
	}

	a.log.Info("attachment deleted", "attachment_id", id, "versions_removed", removed)
	return nil
}

func (a *Attachments) Get(ctx context.Context, id uuid.UUID) (*model.FileAttachment, error) {
	return a.store.GetByID(ctx, id)
}

func (a *Attachments) ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.FileAttachment, error) {
	return a.store.ListByTask(ctx, taskID)
}

// Versions returns the chain rooted at id, lowest version first.
func (a *Attachments) Versions(ctx context.Context, id uuid.UUID) ([]model.FileAttachment, error) {
	if _, err := a.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	ids, err := collect(ctx, id, a.store.VersionsOf)
	if err != nil {
		return nil, err
	}
	return a.store.ListByIDs(ctx, ids)
}
