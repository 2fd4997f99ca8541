package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/providers/llm"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/utils"
)

// StartInterviewInput carries candidate identity for a new session.
// ResumeFileID, when set, links a previously uploaded resume whose
// extracted fields are copied onto the candidate record.
type StartInterviewInput struct {
	Name         string
	Email        string
	Phone        string
	ResumeURL    string
	ResumeFileID string
}

type InterviewService interface {
	// StartSession creates the candidate, generates all six questions and
	// persists the session. Nothing is persisted when generation fails.
	StartSession(ctx context.Context, in StartInterviewInput) (*models.Candidate, *models.InterviewSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	// CurrentQuestion returns the question at the session's cursor along
	// with the remaining seconds on its countdown. Calling it again never
	// restarts the countdown. Returns (nil, 0) for a completed session.
	CurrentQuestion(ctx context.Context, sessionID string) (*models.Question, int, error)
	// SubmitAnswer scores the question at questionIndex, writes the slot
	// exactly once and advances the cursor. questionIndex must still be
	// current; a stale submit (the timer or another tab got there first)
	// fails with CONFLICT instead of answering the wrong question.
	// Answering the last slot completes the session.
	SubmitAnswer(ctx context.Context, sessionID string, questionIndex int, answerText string) (*models.InterviewSession, error)
	// FindActiveSession returns the most recently started active session
	// and its candidate, for resume-on-reload.
	FindActiveSession(ctx context.Context) (*models.Candidate, *models.InterviewSession, error)
	// RetrySummary re-runs summary generation for a completed session that
	// has none yet.
	RetrySummary(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	// Teardown pauses the session's countdown without touching persisted
	// state. The session stays active; the next CurrentQuestion resumes
	// the clock with the saved remaining time.
	Teardown(sessionID string)
}

type interviewService struct {
	sessions   mongorepo.SessionRepository
	candidates pgrepo.CandidateRepository
	resumes    pgrepo.ResumeFileRepository
	provider   llm.Provider
	timers     *CountdownRegistry
	drafts     DraftStore
	log        *logrus.Logger

	llmTimeout time.Duration

	// one mutex per live session serializes manual submits against the
	// expiry auto-submit in this process; the repository's guarded update
	// covers other replicas
	locks sync.Map
}

func NewInterviewService(
	sessions mongorepo.SessionRepository,
	candidates pgrepo.CandidateRepository,
	resumes pgrepo.ResumeFileRepository,
	provider llm.Provider,
	timers *CountdownRegistry,
	drafts DraftStore,
	log *logrus.Logger,
	llmTimeout time.Duration,
) InterviewService {
	if llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	s := &interviewService{
		sessions:   sessions,
		candidates: candidates,
		resumes:    resumes,
		provider:   provider,
		timers:     timers,
		drafts:     drafts,
		log:        log,
		llmTimeout: llmTimeout,
	}
	timers.OnExpire(s.handleTimerExpiry)
	return s
}

func (s *interviewService) lockFor(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *interviewService) StartSession(ctx context.Context, in StartInterviewInput) (*models.Candidate, *models.InterviewSession, error) {
	const op = "InterviewService.StartSession"

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "name and email are required", nil)
	}

	now := time.Now().UTC()
	cand := &models.Candidate{
		ID:              uuid.NewString(),
		Name:            name,
		Email:           email,
		Phone:           strings.TrimSpace(in.Phone),
		ResumeURL:       in.ResumeURL,
		InterviewStatus: models.InterviewInProgress,
		CreatedDate:     now,
	}
	if in.ResumeFileID != "" {
		s.attachResume(ctx, cand, in.ResumeFileID)
	}

	questions, err := s.generateQuestions(ctx, llm.CandidateContext{Name: cand.Name, Email: cand.Email})
	if err != nil {
		return nil, nil, utils.E(utils.CodeGenerationFailed, op, "failed to generate interview questions", err)
	}

	if err := s.candidates.Insert(ctx, cand); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to save candidate", err)
	}

	sess := &models.InterviewSession{
		SessionID:   uuid.NewString(),
		CandidateID: cand.ID,
		Questions:   questions,
		Status:      models.SessionActive,
		StartTime:   now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		// candidate without a session is an orphan; undo it
		if derr := s.candidates.Delete(ctx, cand.ID); derr != nil {
			s.log.WithError(derr).WithField("candidate_id", cand.ID).Error("candidate rollback failed")
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to save session", err)
	}

	s.timers.Ensure(sess.SessionID, 0, questions[0].TimeLimit)
	s.log.WithFields(logrus.Fields{
		"session_id":   sess.SessionID,
		"candidate_id": cand.ID,
	}).Info("interview session started")
	return cand, sess, nil
}

// attachResume copies a stored resume's extraction onto the candidate.
// Best effort: a missing or unparsable resume never blocks the start.
func (s *interviewService) attachResume(ctx context.Context, cand *models.Candidate, resumeFileID string) {
	rf, err := s.resumes.GetByID(ctx, resumeFileID)
	if err != nil {
		s.log.WithError(err).WithField("resume_file_id", resumeFileID).Warn("resume lookup failed")
		return
	}
	cand.ResumeFileID = rf.ID
	if cand.ResumeURL == "" {
		cand.ResumeURL = rf.FilePath
	}
	cand.ResumeEmbedding = rf.Embedding

	if len(rf.Extracted) == 0 {
		return
	}
	var ext llm.ResumeExtraction
	if err := json.Unmarshal(rf.Extracted, &ext); err != nil {
		s.log.WithError(err).WithField("resume_file_id", resumeFileID).Warn("resume extraction unreadable")
		return
	}
	cand.Skills = ext.Skills
	cand.Experience = []byte(ext.Experience)
	cand.Education = []byte(ext.Education)
	if cand.Phone == "" {
		cand.Phone = ext.Phone
	}
}

// generateQuestions runs the six generation calls concurrently; each
// result lands in its own slot so completion order does not matter.
func (s *interviewService) generateQuestions(ctx context.Context, cand llm.CandidateContext) ([]models.Question, error) {
	questions := make([]models.Question, models.QuestionCount)

	g, ctx := errgroup.WithContext(ctx)
	for i, slot := range models.QuestionPlan {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
			defer cancel()
			text, err := s.provider.GenerateQuestion(cctx, slot.Difficulty, cand)
			if err != nil {
				return fmt.Errorf("question %d (%s): %w", i+1, slot.Difficulty, err)
			}
			questions[i] = models.Question{
				QuestionText: text,
				Difficulty:   slot.Difficulty,
				TimeLimit:    slot.TimeLimit,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *interviewService) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "InterviewService.GetSession"
	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if err == utils.ErrNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	return sess, nil
}

func (s *interviewService) CurrentQuestion(ctx context.Context, sessionID string) (*models.Question, int, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if sess.Status != models.SessionActive {
		return nil, 0, nil
	}
	q := sess.CurrentQuestion()
	if q == nil {
		// every slot is answered but the completion write failed earlier;
		// drive it again and report the session as completed
		if _, err := s.finishExhausted(ctx, sessionID); err != nil {
			return nil, 0, err
		}
		return nil, 0, nil
	}
	remaining := s.timers.Ensure(sessionID, sess.CurrentQuestionIndex, q.TimeLimit)
	return q, remaining, nil
}

// finishExhausted re-drives completion for an active session whose last
// answer landed but whose completion write failed. Any other state is
// returned unchanged.
func (s *interviewService) finishExhausted(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionActive && sess.Exhausted() {
		return s.complete(ctx, sess)
	}
	return sess, nil
}

func (s *interviewService) SubmitAnswer(ctx context.Context, sessionID string, questionIndex int, answerText string) (*models.InterviewSession, error) {
	const op = "InterviewService.SubmitAnswer"
	text := strings.TrimSpace(answerText)
	if text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "answer must not be empty", nil)
	}
	if questionIndex < 0 || questionIndex >= models.QuestionCount {
		return nil, utils.E(utils.CodeInvalidArgument, op, "question_index out of range", nil)
	}
	return s.submit(ctx, sessionID, text, false, questionIndex)
}

// handleTimerExpiry is the countdown callback. It submits whatever draft
// the candidate had, or the placeholder when there is none.
func (s *interviewService) handleTimerExpiry(sessionID string, questionIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.llmTimeout+30*time.Second)
	defer cancel()

	text, err := s.drafts.Get(ctx, sessionID, questionIndex)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("draft read failed on expiry")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = models.PlaceholderAnswer
	}

	if _, err := s.submit(ctx, sessionID, text, true, questionIndex); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"session_id":     sessionID,
			"question_index": questionIndex,
		}).Error("auto-submit failed")
	}
}

// submit is the single write path for both manual and expiry submits.
// auto submits are no-ops when they arrive stale (the session moved on
// or completed); manual submits surface CONFLICT instead.
func (s *interviewService) submit(ctx context.Context, sessionID, text string, auto bool, expectIndex int) (*models.InterviewSession, error) {
	const op = "InterviewService.SubmitAnswer"

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		if auto {
			return sess, nil
		}
		return nil, utils.E(utils.CodeConflict, op, "session is already completed", nil)
	}
	if sess.Exhausted() {
		// the last slot landed earlier but the completion write failed
		if sess, err = s.complete(ctx, sess); err != nil {
			return nil, err
		}
		if auto {
			return sess, nil
		}
		return nil, utils.E(utils.CodeConflict, op, "session is already completed", nil)
	}
	idx := sess.CurrentQuestionIndex
	if idx != expectIndex {
		if auto {
			return sess, nil
		}
		return nil, utils.E(utils.CodeConflict, op, "question is no longer current", nil)
	}
	q := sess.CurrentQuestion()
	if q == nil {
		return nil, utils.E(utils.CodeInvariant, op, "active session has no current question", nil)
	}

	s.timers.Stop(sessionID)

	// keep the text recoverable in case scoring fails and the client
	// retries after a reload
	if !auto {
		if derr := s.drafts.Set(ctx, sessionID, idx, text); derr != nil {
			s.log.WithError(derr).WithField("session_id", sessionID).Warn("draft save failed")
		}
	}

	cctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	res, err := s.provider.ScoreAnswer(cctx, q.QuestionText, text)
	cancel()
	if err != nil {
		// slot untouched, cursor unchanged; the client may resubmit
		s.timers.Ensure(sessionID, idx, q.TimeLimit)
		return nil, utils.E(utils.CodeScoringFailed, op, "failed to score answer", err)
	}

	ok, err := s.sessions.AnswerSlot(ctx, sessionID, idx, mongorepo.AnswerWrite{
		Answer:        text,
		Score:         res.Score,
		Feedback:      res.Feedback,
		AnsweredAt:    time.Now().UTC(),
		AutoSubmitted: auto,
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save answer", err)
	}
	if !ok {
		// another writer answered this slot first
		if auto {
			return sess, nil
		}
		return nil, utils.E(utils.CodeConflict, op, "question was already answered", nil)
	}
	if derr := s.drafts.Clear(ctx, sessionID, idx); derr != nil {
		s.log.WithError(derr).WithField("session_id", sessionID).Warn("draft clear failed")
	}

	sess, err = s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Exhausted() {
		return s.complete(ctx, sess)
	}

	next := sess.CurrentQuestion()
	s.timers.Ensure(sessionID, sess.CurrentQuestionIndex, next.TimeLimit)
	return sess, nil
}

// complete aggregates the six scores, closes the session and writes the
// outcome onto the candidate. The summary is best effort; a failure
// leaves it empty for RetrySummary.
func (s *interviewService) complete(ctx context.Context, sess *models.InterviewSession) (*models.InterviewSession, error) {
	const op = "InterviewService.complete"

	sum := 0
	for i := range sess.Questions {
		if sess.Questions[i].Score == nil {
			return nil, utils.E(utils.CodeInvariant, op,
				fmt.Sprintf("question %d has no score at completion", i+1), nil)
		}
		sum += *sess.Questions[i].Score
	}
	final := int(math.Round(float64(sum) / float64(models.QuestionCount)))

	now := time.Now().UTC()
	if err := s.sessions.Complete(ctx, sess.SessionID, now, final); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to complete session", err)
	}
	sess.Status = models.SessionCompleted
	sess.EndTime = &now
	sess.FinalScore = &final

	if err := s.candidates.SetResult(ctx, sess.CandidateID, final, models.InterviewCompleted); err != nil {
		// the session document is authoritative; RetrySummary re-applies
		// the candidate outcome
		s.log.WithError(err).WithField("candidate_id", sess.CandidateID).Error("candidate result write failed")
	}

	s.timers.Stop(sess.SessionID)
	s.locks.Delete(sess.SessionID)

	summary, err := s.generateSummary(ctx, sess)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sess.SessionID).Warn("summary generation failed, session completed without one")
		return sess, nil
	}
	s.applySummary(ctx, sess, summary)

	s.log.WithFields(logrus.Fields{
		"session_id":  sess.SessionID,
		"final_score": final,
	}).Info("interview session completed")
	return sess, nil
}

func (s *interviewService) generateSummary(ctx context.Context, sess *models.InterviewSession) (string, error) {
	cand, err := s.candidates.GetByID(ctx, sess.CandidateID)
	if err != nil {
		return "", err
	}
	results := make([]llm.QuestionScore, 0, len(sess.Questions))
	for i := range sess.Questions {
		if sess.Questions[i].Score == nil {
			continue
		}
		results = append(results, llm.QuestionScore{
			Difficulty: sess.Questions[i].Difficulty,
			Score:      *sess.Questions[i].Score,
		})
	}
	final := 0
	if sess.FinalScore != nil {
		final = *sess.FinalScore
	}

	cctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	return s.provider.GenerateSummary(cctx, llm.CandidateContext{Name: cand.Name, Email: cand.Email}, final, results)
}

func (s *interviewService) applySummary(ctx context.Context, sess *models.InterviewSession, summary string) {
	if err := s.sessions.SetSummary(ctx, sess.SessionID, summary); err != nil {
		s.log.WithError(err).WithField("session_id", sess.SessionID).Error("session summary write failed")
		return
	}
	if err := s.candidates.SetSummary(ctx, sess.CandidateID, summary); err != nil {
		s.log.WithError(err).WithField("candidate_id", sess.CandidateID).Error("candidate summary write failed")
	}
	sess.Summary = summary
}

func (s *interviewService) FindActiveSession(ctx context.Context) (*models.Candidate, *models.InterviewSession, error) {
	const op = "InterviewService.FindActiveSession"
	sess, err := s.sessions.FindActive(ctx)
	if err != nil {
		if err == utils.ErrNotFound {
			return nil, nil, utils.E(utils.CodeNotFound, op, "no active session", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to look up active session", err)
	}
	cand, err := s.candidates.GetByID(ctx, sess.CandidateID)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to load candidate", err)
	}
	return cand, sess, nil
}

func (s *interviewService) RetrySummary(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "InterviewService.RetrySummary"
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionActive && sess.Exhausted() {
		if sess, err = s.finishExhausted(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	if sess.Status != models.SessionCompleted {
		return nil, utils.E(utils.CodeConflict, op, "session is not completed", nil)
	}
	if sess.Summary != "" {
		return sess, nil
	}

	if sess.FinalScore != nil {
		// re-apply the outcome in case the earlier candidate write failed
		if err := s.candidates.SetResult(ctx, sess.CandidateID, *sess.FinalScore, models.InterviewCompleted); err != nil {
			s.log.WithError(err).WithField("candidate_id", sess.CandidateID).Error("candidate result write failed")
		}
	}

	summary, err := s.generateSummary(ctx, sess)
	if err != nil {
		return nil, utils.E(utils.CodeSummaryFailed, op, "failed to generate summary", err)
	}
	s.applySummary(ctx, sess, summary)
	return sess, nil
}

func (s *interviewService) Teardown(sessionID string) {
	s.timers.Pause(sessionID)
}
