package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionCount is the fixed length of every interview.
const QuestionCount = 6

// PlaceholderAnswer is recorded when the timer expires with no draft text.
const PlaceholderAnswer = "No answer provided"

type QuestionSlot struct {
	Difficulty Difficulty
	TimeLimit  int // seconds
}

// QuestionPlan is the fixed difficulty/time sequence for all sessions.
// Index order is the slot order; generation results must land back in
// their slot regardless of which call returns first.
var QuestionPlan = [QuestionCount]QuestionSlot{
	{DifficultyEasy, 20},
	{DifficultyEasy, 20},
	{DifficultyMedium, 60},
	{DifficultyMedium, 60},
	{DifficultyHard, 120},
	{DifficultyHard, 120},
}

// Question is one slot of the interview. Answer, Score and AIFeedback are
// nil until the slot is answered, then written exactly once.
type Question struct {
	QuestionText string     `bson:"question_text" json:"question_text"`
	Difficulty   Difficulty `bson:"difficulty" json:"difficulty"`
	TimeLimit    int        `bson:"time_limit" json:"time_limit"`

	Answer     *string `bson:"answer" json:"answer"`
	Score      *int    `bson:"score" json:"score"`
	AIFeedback *string `bson:"ai_feedback" json:"ai_feedback"`

	AnsweredAt    *time.Time `bson:"answered_at,omitempty" json:"answered_at,omitempty"`
	AutoSubmitted bool       `bson:"auto_submitted,omitempty" json:"auto_submitted,omitempty"`
}

// Answered reports whether the slot has been submitted and scored.
func (q *Question) Answered() bool { return q.Answer != nil }

type InterviewSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID string             `bson:"session_id" json:"id"` // uuid v4

	CandidateID string `bson:"candidate_id" json:"candidate_id"`

	Questions            []Question    `bson:"questions" json:"questions"`
	CurrentQuestionIndex int           `bson:"current_question_index" json:"current_question_index"` // 0..6; 6 == exhausted
	Status               SessionStatus `bson:"status" json:"status"`

	StartTime time.Time  `bson:"start_time" json:"start_time"`
	EndTime   *time.Time `bson:"end_time,omitempty" json:"end_time,omitempty"`

	FinalScore *int   `bson:"final_score,omitempty" json:"final_score,omitempty"`
	Summary    string `bson:"summary,omitempty" json:"summary,omitempty"`
}

// Exhausted reports whether every slot has been answered.
func (s *InterviewSession) Exhausted() bool {
	return s.CurrentQuestionIndex >= QuestionCount
}

// CurrentQuestion returns the question at the current index, or nil once
// the session is exhausted.
func (s *InterviewSession) CurrentQuestion() *Question {
	if s.Exhausted() {
		return nil
	}
	return &s.Questions[s.CurrentQuestionIndex]
}
