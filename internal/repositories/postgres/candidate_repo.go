package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/utils"
)

type CandidateRepository interface {
	Insert(ctx context.Context, c *models.Candidate) error
	GetByID(ctx context.Context, id string) (*models.Candidate, error)
	List(ctx context.Context) ([]models.Candidate, error)
	SetResult(ctx context.Context, id string, finalScore int, status models.InterviewStatus) error
	SetSummary(ctx context.Context, id, summary string) error
	Delete(ctx context.Context, id string) error
	SimilarByEmbedding(ctx context.Context, id string, limit int) ([]models.Candidate, error)
}

type candidateRepo struct {
	db *gorm.DB
}

func NewCandidateRepo(db *gorm.DB) CandidateRepository {
	return &candidateRepo{db: db}
}

func (r *candidateRepo) Insert(ctx context.Context, c *models.Candidate) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *candidateRepo) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &c, err
}

func (r *candidateRepo) List(ctx context.Context) ([]models.Candidate, error) {
	var out []models.Candidate
	err := r.db.WithContext(ctx).
		Order("created_date DESC").
		Find(&out).Error
	return out, err
}

func (r *candidateRepo) SetResult(ctx context.Context, id string, finalScore int, status models.InterviewStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Candidate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"final_score":      finalScore,
			"interview_status": status,
		}).Error
}

func (r *candidateRepo) SetSummary(ctx context.Context, id, summary string) error {
	return r.db.WithContext(ctx).
		Model(&models.Candidate{}).
		Where("id = ?", id).
		Update("summary", summary).Error
}

func (r *candidateRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Candidate{}).Error
}

func (r *candidateRepo) SimilarByEmbedding(ctx context.Context, id string, limit int) ([]models.Candidate, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(c.ResumeEmbedding.Slice()) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var out []models.Candidate
	err = r.db.WithContext(ctx).
		Raw(`SELECT * FROM candidates
		     WHERE id <> ? AND resume_embedding IS NOT NULL
		     ORDER BY resume_embedding <-> ? LIMIT ?`,
			id, c.ResumeEmbedding, limit).
		Scan(&out).Error
	return out, err
}
