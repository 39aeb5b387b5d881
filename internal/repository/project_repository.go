package repository

import (
	"context"

	"colabtrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return translate(r.db.WithContext(ctx).Omit("Owner").Create(project).Error, nil)
}

func (r *ProjectRepository) GetOwned(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&projects).Error
	return projects, translate(err, nil)
}

// GetByID retrieves a project with its owner loaded
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Preload("Owner").Where("id = ?", id).First(&project).Error; err != nil {
		return nil, translate(err, ErrProjectNotFound)
	}
	return &project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *model.Project) error {
	result := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", project.ID).
		Updates(map[string]interface{}{
			"name":        project.Name,
			"description": project.Description,
			"updated_at":  project.UpdatedAt,
		})
	if result.Error != nil {
		return translate(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}
