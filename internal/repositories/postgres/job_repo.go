package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

type JobRepository interface {
	// SaveResults upserts postings on (user_id, external_id) and fills in their ids.
	SaveResults(ctx context.Context, jobs []models.JobPosting) error
	GetForUser(ctx context.Context, userID string, id uuid.UUID) (*models.JobPosting, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.JobPosting, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) SaveResults(ctx context.Context, jobs []models.JobPosting) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "company", "location", "url", "description",
					"platform", "quality_tier", "match_score", "strategy", "keywords", "raw",
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "id"}}},
		).
		Create(&jobs).Error
}

func (r *jobRepo) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*models.JobPosting, error) {
	var row models.JobPosting
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *jobRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.JobPosting, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.JobPosting
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
