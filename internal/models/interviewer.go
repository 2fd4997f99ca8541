package models

import "time"

type InterviewerRole string

const (
	RoleInterviewer InterviewerRole = "interviewer"
	RoleAdmin       InterviewerRole = "admin"
)

// Interviewer is a dashboard account. Candidates never log in.
type Interviewer struct {
	ID           string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string          `gorm:"column:email;type:text;uniqueIndex" json:"email"`
	Name         string          `gorm:"column:name;type:text" json:"name"`
	PasswordHash string          `gorm:"column:password_hash;type:text" json:"-"`
	Role         InterviewerRole `gorm:"column:role;type:text" json:"role"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Interviewer) TableName() string { return "interviewers" }
