package repository

import (
	"context"
	"errors"
	"time"

	"colabtrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectMemberRepository struct {
	db *gorm.DB
}

func NewProjectMemberRepository(db *gorm.DB) *ProjectMemberRepository {
	return &ProjectMemberRepository{db: db}
}

// AddMember grants userID the given role on a project, or changes the role if a grant exists.
func (r *ProjectMemberRepository) AddMember(ctx context.Context, projectID, userID uuid.UUID, role string, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ProjectMember
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&existing).Error
		if err == nil {
			return tx.Model(&existing).Update("role", role).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		member := model.ProjectMember{
			ID:        uuid.New(),
			ProjectID: projectID,
			UserID:    userID,
			Role:      role,
			CreatedAt: at,
		}
		return tx.Omit("Project", "User").Create(&member).Error
	})
	return translate(err, nil)
}

func (r *ProjectMemberRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectMember{})
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// GetMembers returns the grants on a project with their users loaded.
func (r *ProjectMemberRepository) GetMembers(ctx context.Context, projectID uuid.UUID) ([]model.ProjectMember, error) {
	var members []model.ProjectMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at").
		Find(&members).Error
	return members, translate(err, nil)
}

// GetSharedProjects returns projects on which userID holds a grant.
func (r *ProjectMemberRepository) GetSharedProjects(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.created_at").
		Find(&projects).Error
	return projects, translate(err, nil)
}

// CheckAccess reports whether userID owns the project or holds a grant satisfying requiredRole.
// A viewer requirement is met by any grant; an editor requirement only by an editor grant.
func (r *ProjectMemberRepository) CheckAccess(ctx context.Context, projectID, userID uuid.UUID, requiredRole string) (bool, error) {
	var owned int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ? AND owner_id = ?", projectID, userID).
		Count(&owned).Error
	if err != nil {
		return false, translate(err, nil)
	}
	if owned > 0 {
		return true, nil
	}

	var member model.ProjectMember
	err = r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, translate(err, nil)
	}

	if requiredRole == model.MemberViewer {
		return true, nil
	}
	return member.Role == model.MemberEditor, nil
}
