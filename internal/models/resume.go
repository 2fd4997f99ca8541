package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ResumeFile is the stored upload plus whatever the extractor pulled out
// of it. Extraction fields are copied onto the Candidate when an
// interview starts against this resume.
type ResumeFile struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FileName string `gorm:"column:file_name;type:text" json:"file_name"`
	FilePath string `gorm:"column:file_path;type:text" json:"file_path"` // GCS object key
	FileSize int    `gorm:"column:file_size;type:integer" json:"file_size"`
	MimeType string `gorm:"column:mime_type;type:text" json:"mime_type"`

	Extracted datatypes.JSON  `gorm:"column:extracted;type:jsonb" json:"extracted,omitempty"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	UploadAt time.Time `gorm:"column:upload_at;type:timestamptz" json:"upload_at"`
}

func (ResumeFile) TableName() string { return "resume_files" }
