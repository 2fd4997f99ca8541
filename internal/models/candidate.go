package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type InterviewStatus string

const (
	InterviewNotStarted InterviewStatus = "not_started"
	InterviewInProgress InterviewStatus = "in_progress"
	InterviewCompleted  InterviewStatus = "completed"
)

// Candidate is the identity and outcome record. FinalScore and Summary stay
// empty until the interview completes; CreatedDate is set once at creation.
type Candidate struct {
	ID    string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name  string `gorm:"column:name;type:text" json:"name"`
	Email string `gorm:"column:email;type:text;index" json:"email"`
	Phone string `gorm:"column:phone;type:text" json:"phone,omitempty"`

	ResumeURL    string `gorm:"column:resume_url;type:text" json:"resume_url,omitempty"`
	ResumeFileID string `gorm:"column:resume_file_id;type:uuid" json:"resume_file_id,omitempty"`

	// Fields extracted from the resume.
	Skills     pq.StringArray `gorm:"column:skills;type:text[]" json:"skills,omitempty"`
	Experience datatypes.JSON `gorm:"column:experience;type:jsonb" json:"experience,omitempty"`
	Education  datatypes.JSON `gorm:"column:education;type:jsonb" json:"education,omitempty"`

	ResumeEmbedding pgvector.Vector `gorm:"column:resume_embedding;type:vector(768)" json:"-"`

	InterviewStatus InterviewStatus `gorm:"column:interview_status;type:text;index" json:"interview_status"`
	FinalScore      *int            `gorm:"column:final_score" json:"final_score,omitempty"`
	Summary         string          `gorm:"column:summary;type:text" json:"summary,omitempty"`

	CreatedDate time.Time `gorm:"column:created_date;type:timestamptz" json:"created_date"`
}

func (Candidate) TableName() string { return "candidates" }
