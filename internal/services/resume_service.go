package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/providers/embed"
	"github.com/hireloop/hireloop/internal/providers/llm"
	"github.com/hireloop/hireloop/internal/providers/resumeparse"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/storage"
	"github.com/hireloop/hireloop/internal/utils"
)

// MaxResumeSize caps uploads at 10 MB.
const MaxResumeSize = 10 << 20

var pdfMagic = []byte("%PDF")

// ResumeUpload is one received file, already read into memory.
type ResumeUpload struct {
	FileName string
	MimeType string
	Data     []byte
}

type ResumeService interface {
	// Upload stores the PDF, extracts candidate fields from its text and
	// persists the file record. Extraction failures degrade to an empty
	// extraction; storage failures abort.
	Upload(ctx context.Context, up ResumeUpload) (*models.ResumeFile, llm.ResumeExtraction, error)
	// SignedURL returns a short-lived download link for a stored resume.
	SignedURL(ctx context.Context, id string) (string, error)
}

type resumeService struct {
	files    pgrepo.ResumeFileRepository
	uploader storage.Uploader
	signer   storage.Signer
	provider llm.Provider
	embedder embed.Provider // optional
	log      *logrus.Logger

	llmTimeout time.Duration
}

func NewResumeService(
	files pgrepo.ResumeFileRepository,
	uploader storage.Uploader,
	signer storage.Signer,
	provider llm.Provider,
	embedder embed.Provider,
	log *logrus.Logger,
	llmTimeout time.Duration,
) ResumeService {
	if llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	return &resumeService{
		files:      files,
		uploader:   uploader,
		signer:     signer,
		provider:   provider,
		embedder:   embedder,
		log:        log,
		llmTimeout: llmTimeout,
	}
}

func (s *resumeService) Upload(ctx context.Context, up ResumeUpload) (*models.ResumeFile, llm.ResumeExtraction, error) {
	const op = "ResumeService.Upload"
	var none llm.ResumeExtraction

	if len(up.Data) == 0 {
		return nil, none, utils.E(utils.CodeInvalidArgument, op, "file is empty", nil)
	}
	if len(up.Data) > MaxResumeSize {
		return nil, none, utils.E(utils.CodeInvalidArgument, op, "file exceeds the 10MB limit", nil)
	}
	if !bytes.HasPrefix(up.Data, pdfMagic) {
		return nil, none, utils.E(utils.CodeInvalidArgument, op, "only PDF files are accepted", nil)
	}

	id := uuid.NewString()
	objectName := fmt.Sprintf("resumes/%s/%s", id, path.Base(up.FileName))
	storedPath, err := s.uploader.Upload(ctx, objectName, "application/pdf", bytes.NewReader(up.Data))
	if err != nil {
		return nil, none, utils.E(utils.CodeUnavailable, op, "failed to store resume", err)
	}

	rf := &models.ResumeFile{
		ID:       id,
		FileName: path.Base(up.FileName),
		FilePath: storedPath,
		FileSize: len(up.Data),
		MimeType: "application/pdf",
		UploadAt: time.Now().UTC(),
	}

	ext := s.extract(ctx, rf, up.Data)

	if err := s.files.Insert(ctx, rf); err != nil {
		return nil, none, utils.E(utils.CodeInternal, op, "failed to save resume record", err)
	}
	return rf, ext, nil
}

// extract pulls text out of the PDF, asks the model for structured
// fields and embeds the text for similarity lookups. Every step is best
// effort; the upload still succeeds with whatever was recovered.
func (s *resumeService) extract(ctx context.Context, rf *models.ResumeFile, data []byte) llm.ResumeExtraction {
	var ext llm.ResumeExtraction

	text, err := resumeparse.ExtractText(data)
	if err != nil || text == "" {
		s.log.WithError(err).WithField("resume_file_id", rf.ID).Warn("resume text extraction failed")
		return ext
	}
	text = resumeparse.CleanText(text)

	cctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	ext, err = s.provider.ExtractResume(cctx, text)
	cancel()
	if err != nil {
		s.log.WithError(err).WithField("resume_file_id", rf.ID).Warn("resume field extraction failed")
		ext = llm.ResumeExtraction{}
	} else if b, merr := json.Marshal(ext); merr == nil {
		rf.Extracted = b
	}

	if s.embedder != nil {
		cctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
		vec, eerr := s.embedder.Embed(cctx, text)
		cancel()
		if eerr != nil {
			s.log.WithError(eerr).WithField("resume_file_id", rf.ID).Warn("resume embedding failed")
		} else {
			rf.Embedding = pgvector.NewVector(vec)
		}
	}
	return ext
}

func (s *resumeService) SignedURL(ctx context.Context, id string) (string, error) {
	const op = "ResumeService.SignedURL"
	rf, err := s.files.GetByID(ctx, id)
	if err != nil {
		if err == utils.ErrNotFound {
			return "", utils.E(utils.CodeNotFound, op, "resume not found", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to load resume record", err)
	}
	url, err := s.signer.SignedGetURL(ctx, rf.FilePath, 15*time.Minute)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign resume url", err)
	}
	return url, nil
}
