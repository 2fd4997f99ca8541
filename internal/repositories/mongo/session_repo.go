package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/utils"
)

// AnswerWrite is the one-time payload for a question slot.
type AnswerWrite struct {
	Answer        string
	Score         int
	Feedback      string
	AnsweredAt    time.Time
	AutoSubmitted bool
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	GetByCandidateID(ctx context.Context, candidateID string) (*models.InterviewSession, error)
	// FindActive returns the most recently started active session, or
	// utils.ErrNotFound when there is none.
	FindActive(ctx context.Context) (*models.InterviewSession, error)
	// AnswerSlot writes answer/score/feedback into slot index and advances
	// current_question_index by one, but only if the session is still
	// active, the index is still current, and the slot is unanswered.
	// Returns false when that guard does not match (a concurrent submit
	// won the race); the document is then untouched.
	AnswerSlot(ctx context.Context, sessionID string, index int, w AnswerWrite) (bool, error)
	Complete(ctx context.Context, sessionID string, endTime time.Time, finalScore int) error
	SetSummary(ctx context.Context, sessionID, summary string) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("interview_sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) GetByCandidateID(ctx context.Context, candidateID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx,
		bson.M{"candidate_id": candidateID},
		options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}}),
	).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) FindActive(ctx context.Context) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx,
		bson.M{"status": models.SessionActive},
		options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}}),
	).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) AnswerSlot(ctx context.Context, sessionID string, index int, w AnswerWrite) (bool, error) {
	slot := fmt.Sprintf("questions.%d", index)

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"session_id":             sessionID,
			"status":                 models.SessionActive,
			"current_question_index": index,
			slot + ".answer":         nil,
		},
		bson.M{
			"$set": bson.M{
				slot + ".answer":         w.Answer,
				slot + ".score":          w.Score,
				slot + ".ai_feedback":    w.Feedback,
				slot + ".answered_at":    w.AnsweredAt.UTC(),
				slot + ".auto_submitted": w.AutoSubmitted,
			},
			"$inc": bson.M{"current_question_index": 1},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *sessionRepo) Complete(ctx context.Context, sessionID string, endTime time.Time, finalScore int) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"status":      models.SessionCompleted,
			"end_time":    endTime.UTC(),
			"final_score": finalScore,
		}},
	)
	return err
}

func (r *sessionRepo) SetSummary(ctx context.Context, sessionID, summary string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"summary": summary}},
	)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"session_id": sessionID})
	return err
}
