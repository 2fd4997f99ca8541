package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/utils"
)

type InterviewerRepository interface {
	Insert(ctx context.Context, i *models.Interviewer) error
	GetByEmail(ctx context.Context, email string) (*models.Interviewer, error)
	Count(ctx context.Context) (int64, error)
}

type interviewerRepo struct {
	db *gorm.DB
}

func NewInterviewerRepo(db *gorm.DB) InterviewerRepository {
	return &interviewerRepo{db: db}
}

func (r *interviewerRepo) Insert(ctx context.Context, i *models.Interviewer) error {
	return r.db.WithContext(ctx).Create(i).Error
}

func (r *interviewerRepo) GetByEmail(ctx context.Context, email string) (*models.Interviewer, error) {
	var row models.Interviewer
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *interviewerRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Interviewer{}).Count(&n).Error
	return n, err
}
