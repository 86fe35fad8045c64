package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yoockh/yoospeak-speech/internal/models"
	"github.com/yoockh/yoospeak-speech/internal/utils"
)

type JobRepo interface {
	Insert(ctx context.Context, job *models.RecognitionJob) error
	GetByOperation(ctx context.Context, operationName string) (*models.RecognitionJob, error)
	Update(ctx context.Context, job *models.RecognitionJob) error
	ListRecent(ctx context.Context, limit int) ([]models.RecognitionJob, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepo {
	return &jobRepo{db: db}
}

func (r *jobRepo) Insert(ctx context.Context, job *models.RecognitionJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) GetByOperation(ctx context.Context, operationName string) (*models.RecognitionJob, error) {
	var row models.RecognitionJob
	err := r.db.WithContext(ctx).Where("operation_name = ?", operationName).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *jobRepo) Update(ctx context.Context, job *models.RecognitionJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *jobRepo) ListRecent(ctx context.Context, limit int) ([]models.RecognitionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.RecognitionJob
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
