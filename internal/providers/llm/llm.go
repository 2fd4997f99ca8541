package llm

import (
	"context"
	"encoding/json"

	"github.com/hireloop/hireloop/internal/models"
)

// CandidateContext is the slice of candidate identity handed to prompts.
type CandidateContext struct {
	Name  string
	Email string
}

// ScoreResult is the structured scoring payload for one answer.
type ScoreResult struct {
	Score    int    `json:"score"` // 0-100
	Feedback string `json:"feedback"`
}

// QuestionScore is one (difficulty, score) pair in slot order, used by
// the summary prompt.
type QuestionScore struct {
	Difficulty models.Difficulty
	Score      int
}

// ResumeExtraction is what the model pulls out of resume text.
type ResumeExtraction struct {
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Skills     []string        `json:"skills"`
	Experience json.RawMessage `json:"experience"`
	Education  json.RawMessage `json:"education"`
}

// Provider is the language-model collaborator behind question
// generation, answer scoring, summaries and resume field extraction.
// Every call is fallible and should run under a caller-imposed timeout.
type Provider interface {
	GenerateQuestion(ctx context.Context, difficulty models.Difficulty, cand CandidateContext) (string, error)
	ScoreAnswer(ctx context.Context, questionText, answerText string) (ScoreResult, error)
	GenerateSummary(ctx context.Context, cand CandidateContext, finalScore int, results []QuestionScore) (string, error)
	ExtractResume(ctx context.Context, resumeText string) (ResumeExtraction, error)
	Close() error
}
