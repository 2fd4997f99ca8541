package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/providers/llm"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	"github.com/hireloop/hireloop/internal/utils"
)

// ---- fakes ----

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.InterviewSession

	completeErr error // returned once by Complete, then cleared
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.InterviewSession)}
}

func cloneSession(s *models.InterviewSession) *models.InterviewSession {
	cp := *s
	cp.Questions = make([]models.Question, len(s.Questions))
	for i, q := range s.Questions {
		if q.Answer != nil {
			v := *q.Answer
			q.Answer = &v
		}
		if q.Score != nil {
			v := *q.Score
			q.Score = &v
		}
		if q.AIFeedback != nil {
			v := *q.AIFeedback
			q.AIFeedback = &v
		}
		if q.AnsweredAt != nil {
			v := *q.AnsweredAt
			q.AnsweredAt = &v
		}
		cp.Questions[i] = q
	}
	if s.EndTime != nil {
		v := *s.EndTime
		cp.EndTime = &v
	}
	if s.FinalScore != nil {
		v := *s.FinalScore
		cp.FinalScore = &v
	}
	return &cp
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	r.sessions[s.SessionID] = cloneSession(s)
	return nil
}

func (r *fakeSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return cloneSession(s), nil
}

func (r *fakeSessionRepo) GetByCandidateID(ctx context.Context, candidateID string) (*models.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.InterviewSession
	for _, s := range r.sessions {
		if s.CandidateID == candidateID {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, utils.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return cloneSession(out[0]), nil
}

func (r *fakeSessionRepo) FindActive(ctx context.Context) (*models.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.InterviewSession
	for _, s := range r.sessions {
		if s.Status == models.SessionActive {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, utils.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return cloneSession(out[0]), nil
}

func (r *fakeSessionRepo) AnswerSlot(ctx context.Context, sessionID string, index int, w mongorepo.AnswerWrite) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if s.Status != models.SessionActive || s.CurrentQuestionIndex != index {
		return false, nil
	}
	if index < 0 || index >= len(s.Questions) || s.Questions[index].Answer != nil {
		return false, nil
	}
	answer, score, feedback, at := w.Answer, w.Score, w.Feedback, w.AnsweredAt
	s.Questions[index].Answer = &answer
	s.Questions[index].Score = &score
	s.Questions[index].AIFeedback = &feedback
	s.Questions[index].AnsweredAt = &at
	s.Questions[index].AutoSubmitted = w.AutoSubmitted
	s.CurrentQuestionIndex++
	return true, nil
}

func (r *fakeSessionRepo) Complete(ctx context.Context, sessionID string, endTime time.Time, finalScore int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		err := r.completeErr
		r.completeErr = nil
		return err
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	s.Status = models.SessionCompleted
	s.EndTime = &endTime
	s.FinalScore = &finalScore
	return nil
}

func (r *fakeSessionRepo) SetSummary(ctx context.Context, sessionID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	s.Summary = summary
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

type fakeCandidateRepo struct {
	mu         sync.Mutex
	candidates map[string]*models.Candidate
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{candidates: make(map[string]*models.Candidate)}
}

func (r *fakeCandidateRepo) Insert(ctx context.Context, c *models.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.candidates[c.ID] = &cp
	return nil
}

func (r *fakeCandidateRepo) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCandidateRepo) List(ctx context.Context) ([]models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCandidateRepo) SetResult(ctx context.Context, id string, finalScore int, status models.InterviewStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return utils.ErrNotFound
	}
	v := finalScore
	c.FinalScore = &v
	c.InterviewStatus = status
	return nil
}

func (r *fakeCandidateRepo) SetSummary(ctx context.Context, id, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return utils.ErrNotFound
	}
	c.Summary = summary
	return nil
}

func (r *fakeCandidateRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.candidates, id)
	return nil
}

func (r *fakeCandidateRepo) SimilarByEmbedding(ctx context.Context, id string, limit int) ([]models.Candidate, error) {
	return nil, nil
}

type fakeResumeRepo struct {
	mu    sync.Mutex
	files map[string]*models.ResumeFile
}

func newFakeResumeRepo() *fakeResumeRepo {
	return &fakeResumeRepo{files: make(map[string]*models.ResumeFile)}
}

func (r *fakeResumeRepo) Insert(ctx context.Context, f *models.ResumeFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.files[f.ID] = &cp
	return nil
}

func (r *fakeResumeRepo) GetByID(ctx context.Context, id string) (*models.ResumeFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

type fakeLLM struct {
	mu         sync.Mutex
	scoreCalls int

	questionFn func(d models.Difficulty, cand llm.CandidateContext) (string, error)
	scoreFn    func(questionText, answerText string) (llm.ScoreResult, error)
	summaryFn  func(cand llm.CandidateContext, finalScore int, results []llm.QuestionScore) (string, error)
}

func (f *fakeLLM) GenerateQuestion(ctx context.Context, d models.Difficulty, cand llm.CandidateContext) (string, error) {
	if f.questionFn != nil {
		return f.questionFn(d, cand)
	}
	return "Describe a " + string(d) + " problem you solved.", nil
}

func (f *fakeLLM) ScoreAnswer(ctx context.Context, questionText, answerText string) (llm.ScoreResult, error) {
	f.mu.Lock()
	f.scoreCalls++
	f.mu.Unlock()
	if f.scoreFn != nil {
		return f.scoreFn(questionText, answerText)
	}
	return llm.ScoreResult{Score: 50, Feedback: "ok"}, nil
}

func (f *fakeLLM) GenerateSummary(ctx context.Context, cand llm.CandidateContext, finalScore int, results []llm.QuestionScore) (string, error) {
	if f.summaryFn != nil {
		return f.summaryFn(cand, finalScore, results)
	}
	return "solid performance overall", nil
}

func (f *fakeLLM) ExtractResume(ctx context.Context, resumeText string) (llm.ResumeExtraction, error) {
	return llm.ResumeExtraction{}, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) ScoreCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoreCalls
}

type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]string
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]string)}
}

func (s *fakeDraftStore) key(sessionID string, index int) string {
	return draftKey(sessionID, index)
}

func (s *fakeDraftStore) Set(ctx context.Context, sessionID string, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[s.key(sessionID, index)] = text
	return nil
}

func (s *fakeDraftStore) Append(ctx context.Context, sessionID string, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[s.key(sessionID, index)] += text
	return nil
}

func (s *fakeDraftStore) Get(ctx context.Context, sessionID string, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[s.key(sessionID, index)], nil
}

func (s *fakeDraftStore) Clear(ctx context.Context, sessionID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, s.key(sessionID, index))
	return nil
}

// ---- harness ----

type harness struct {
	svc        InterviewService
	sessions   *fakeSessionRepo
	candidates *fakeCandidateRepo
	resumes    *fakeResumeRepo
	llm        *fakeLLM
	timers     *CountdownRegistry
	drafts     *fakeDraftStore
}

func newHarness(t *testing.T, provider *fakeLLM, tick time.Duration) *harness {
	t.Helper()
	if provider == nil {
		provider = &fakeLLM{}
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	timers := NewCountdownRegistry(nil, log)
	if tick > 0 {
		timers.SetTickInterval(tick)
	} else {
		// long tick so countdowns never fire during non-timer tests
		timers.SetTickInterval(time.Hour)
	}

	h := &harness{
		sessions:   newFakeSessionRepo(),
		candidates: newFakeCandidateRepo(),
		resumes:    newFakeResumeRepo(),
		llm:        provider,
		timers:     timers,
		drafts:     newFakeDraftStore(),
	}
	h.svc = NewInterviewService(h.sessions, h.candidates, h.resumes, provider, timers, h.drafts, log, 5*time.Second)
	return h
}

func startSession(t *testing.T, h *harness) (*models.Candidate, *models.InterviewSession) {
	t.Helper()
	cand, sess, err := h.svc.StartSession(context.Background(), StartInterviewInput{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}
	return cand, sess
}

// ---- tests ----

func TestStartSessionBuildsFixedQuestionPlan(t *testing.T) {
	h := newHarness(t, nil, 0)
	cand, sess := startSession(t, h)

	if cand.InterviewStatus != models.InterviewInProgress {
		t.Fatalf("candidate status = %q, want in_progress", cand.InterviewStatus)
	}
	if sess.Status != models.SessionActive {
		t.Fatalf("session status = %q, want active", sess.Status)
	}
	if sess.CurrentQuestionIndex != 0 {
		t.Fatalf("current index = %d, want 0", sess.CurrentQuestionIndex)
	}
	if len(sess.Questions) != models.QuestionCount {
		t.Fatalf("got %d questions, want %d", len(sess.Questions), models.QuestionCount)
	}

	for i, slot := range models.QuestionPlan {
		q := sess.Questions[i]
		if q.Difficulty != slot.Difficulty {
			t.Errorf("question %d difficulty = %q, want %q", i, q.Difficulty, slot.Difficulty)
		}
		if q.TimeLimit != slot.TimeLimit {
			t.Errorf("question %d time limit = %d, want %d", i, q.TimeLimit, slot.TimeLimit)
		}
		if !strings.Contains(q.QuestionText, string(slot.Difficulty)) {
			t.Errorf("question %d text %q did not land in its slot", i, q.QuestionText)
		}
		if q.Answered() {
			t.Errorf("question %d already answered", i)
		}
	}
}

func TestStartSessionRequiresNameAndEmail(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, _, err := h.svc.StartSession(context.Background(), StartInterviewInput{Name: "  ", Email: ""})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestStartSessionGenerationFailurePersistsNothing(t *testing.T) {
	provider := &fakeLLM{
		questionFn: func(d models.Difficulty, cand llm.CandidateContext) (string, error) {
			if d == models.DifficultyHard {
				return "", errors.New("model unavailable")
			}
			return "q", nil
		},
	}
	h := newHarness(t, provider, 0)

	_, _, err := h.svc.StartSession(context.Background(), StartInterviewInput{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	})
	if !utils.IsCode(err, utils.CodeGenerationFailed) {
		t.Fatalf("expected GENERATION_FAILED, got %v", err)
	}
	if n := len(h.candidates.candidates); n != 0 {
		t.Fatalf("expected no candidates persisted, got %d", n)
	}
	if n := len(h.sessions.sessions); n != 0 {
		t.Fatalf("expected no sessions persisted, got %d", n)
	}
}

func TestSubmitAnswerScoresAndAdvances(t *testing.T) {
	provider := &fakeLLM{
		scoreFn: func(q, a string) (llm.ScoreResult, error) {
			return llm.ScoreResult{Score: 85, Feedback: "clear and correct"}, nil
		},
	}
	h := newHarness(t, provider, 0)
	_, sess := startSession(t, h)

	got, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, 0, "binary search halves the range")
	if err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}
	if got.CurrentQuestionIndex != 1 {
		t.Fatalf("current index = %d, want 1", got.CurrentQuestionIndex)
	}

	q := got.Questions[0]
	if q.Answer == nil || *q.Answer != "binary search halves the range" {
		t.Fatalf("answer not recorded: %+v", q)
	}
	if q.Score == nil || *q.Score != 85 {
		t.Fatalf("score not recorded: %+v", q)
	}
	if q.AIFeedback == nil || *q.AIFeedback != "clear and correct" {
		t.Fatalf("feedback not recorded: %+v", q)
	}
	if q.AutoSubmitted {
		t.Fatal("manual submit marked auto_submitted")
	}
}

func TestSubmitAnswerStaleIndexConflicts(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)

	if _, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, 0, "first"); err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}

	// a second tab still on question 0
	_, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, 0, "duplicate")
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	got, err := h.svc.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.CurrentQuestionIndex != 1 {
		t.Fatalf("current index = %d, want 1", got.CurrentQuestionIndex)
	}
	if *got.Questions[0].Answer != "first" {
		t.Fatalf("slot overwritten: %q", *got.Questions[0].Answer)
	}
}

func TestSubmitAnswerConcurrentDoubleSubmit(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.SubmitAnswer(context.Background(), sess.SessionID, 0, "same answer twice")
		}(i)
	}
	wg.Wait()

	var okCount, conflictCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case utils.IsCode(err, utils.CodeConflict):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || conflictCount != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 each", okCount, conflictCount)
	}
	if calls := h.llm.ScoreCalls(); calls != 1 {
		t.Fatalf("scorer called %d times, want 1", calls)
	}

	got, _ := h.svc.GetSession(context.Background(), sess.SessionID)
	if got.CurrentQuestionIndex != 1 {
		t.Fatalf("current index = %d, want 1", got.CurrentQuestionIndex)
	}
}

func TestSubmitAnswerScoringFailureLeavesSlotRetryable(t *testing.T) {
	fail := true
	provider := &fakeLLM{
		scoreFn: func(q, a string) (llm.ScoreResult, error) {
			if fail {
				return llm.ScoreResult{}, errors.New("scoring backend down")
			}
			return llm.ScoreResult{Score: 70, Feedback: "fine"}, nil
		},
	}
	h := newHarness(t, provider, 0)
	_, sess := startSession(t, h)

	_, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, 0, "my answer")
	if !utils.IsCode(err, utils.CodeScoringFailed) {
		t.Fatalf("expected SCORING_FAILED, got %v", err)
	}

	got, _ := h.svc.GetSession(context.Background(), sess.SessionID)
	if got.CurrentQuestionIndex != 0 {
		t.Fatalf("index moved to %d on scoring failure", got.CurrentQuestionIndex)
	}
	if got.Questions[0].Answered() {
		t.Fatal("slot written despite scoring failure")
	}

	// the draft survives for the retry
	draft, _ := h.drafts.Get(context.Background(), sess.SessionID, 0)
	if draft != "my answer" {
		t.Fatalf("draft = %q, want the submitted text", draft)
	}

	fail = false
	if _, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, 0, "my answer"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	got, _ = h.svc.GetSession(context.Background(), sess.SessionID)
	if got.CurrentQuestionIndex != 1 || *got.Questions[0].Score != 70 {
		t.Fatalf("retry did not land: %+v", got.Questions[0])
	}
}

func TestCompletionAggregatesFinalScore(t *testing.T) {
	scores := []int{80, 70, 90, 60, 75, 85} // sum 460, mean 76.67, rounds to 77
	call := 0
	var mu sync.Mutex
	provider := &fakeLLM{
		scoreFn: func(q, a string) (llm.ScoreResult, error) {
			mu.Lock()
			defer mu.Unlock()
			s := scores[call]
			call++
			return llm.ScoreResult{Score: s, Feedback: "noted"}, nil
		},
	}
	h := newHarness(t, provider, 0)
	cand, sess := startSession(t, h)

	var final *models.InterviewSession
	for i := 0; i < models.QuestionCount; i++ {
		got, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, i, "answer")
		if err != nil {
			t.Fatalf("submit %d error: %v", i, err)
		}
		final = got
	}

	if final.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.FinalScore == nil || *final.FinalScore != 77 {
		t.Fatalf("final score = %v, want 77", final.FinalScore)
	}
	if final.EndTime == nil {
		t.Fatal("end time not set")
	}
	if final.Summary == "" {
		t.Fatal("summary not set")
	}

	stored, err := h.candidates.GetByID(context.Background(), cand.ID)
	if err != nil {
		t.Fatalf("candidate lookup error: %v", err)
	}
	if stored.InterviewStatus != models.InterviewCompleted {
		t.Fatalf("candidate status = %q, want completed", stored.InterviewStatus)
	}
	if stored.FinalScore == nil || *stored.FinalScore != 77 {
		t.Fatalf("candidate final score = %v, want 77", stored.FinalScore)
	}
	if stored.Summary == "" {
		t.Fatal("candidate summary not set")
	}
}

func TestSummaryFailureCompletesAndRetries(t *testing.T) {
	fail := true
	provider := &fakeLLM{
		summaryFn: func(cand llm.CandidateContext, finalScore int, results []llm.QuestionScore) (string, error) {
			if fail {
				return "", errors.New("summary backend down")
			}
			return "strong fundamentals", nil
		},
	}
	h := newHarness(t, provider, 0)
	_, sess := startSession(t, h)

	for i := 0; i < models.QuestionCount; i++ {
		if _, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, i, "answer"); err != nil {
			t.Fatalf("submit %d error: %v", i, err)
		}
	}

	got, _ := h.svc.GetSession(context.Background(), sess.SessionID)
	if got.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed despite summary failure", got.Status)
	}
	if got.Summary != "" {
		t.Fatalf("summary = %q, want empty after failure", got.Summary)
	}

	fail = false
	retried, err := h.svc.RetrySummary(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("RetrySummary error: %v", err)
	}
	if retried.Summary != "strong fundamentals" {
		t.Fatalf("summary = %q after retry", retried.Summary)
	}
}

func TestRetrySummaryRejectsActiveSession(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)

	_, err := h.svc.RetrySummary(context.Background(), sess.SessionID)
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestSubmitAfterCompletionConflicts(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)

	for i := 0; i < models.QuestionCount; i++ {
		if _, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, i, "answer"); err != nil {
			t.Fatalf("submit %d error: %v", i, err)
		}
	}

	_, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, 5, "late")
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestTimerExpiryAutoSubmitsPlaceholder(t *testing.T) {
	h := newHarness(t, nil, time.Millisecond)
	_, sess := startSession(t, h)

	// question 0 has a 20 second limit, ticking at 1ms here
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := h.svc.GetSession(context.Background(), sess.SessionID)
		if err != nil {
			t.Fatalf("GetSession error: %v", err)
		}
		if got.Questions[0].Answered() {
			if *got.Questions[0].Answer != models.PlaceholderAnswer {
				t.Fatalf("auto-submitted answer = %q, want placeholder", *got.Questions[0].Answer)
			}
			if !got.Questions[0].AutoSubmitted {
				t.Fatal("slot not marked auto_submitted")
			}
			if got.CurrentQuestionIndex < 1 {
				t.Fatalf("index = %d after auto-submit", got.CurrentQuestionIndex)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timer never auto-submitted question 0")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTimerExpiryUsesDraftText(t *testing.T) {
	h := newHarness(t, nil, time.Millisecond)
	_, sess := startSession(t, h)

	if err := h.drafts.Set(context.Background(), sess.SessionID, 0, "half-typed thought"); err != nil {
		t.Fatalf("draft set error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := h.svc.GetSession(context.Background(), sess.SessionID)
		if got.Questions[0].Answered() {
			if *got.Questions[0].Answer != "half-typed thought" {
				t.Fatalf("auto-submitted answer = %q, want the draft", *got.Questions[0].Answer)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timer never auto-submitted question 0")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFindActiveSessionReturnsMostRecent(t *testing.T) {
	h := newHarness(t, nil, 0)

	older := &models.InterviewSession{
		SessionID:   "older",
		CandidateID: "c1",
		Status:      models.SessionActive,
		StartTime:   time.Now().Add(-time.Hour),
		Questions:   make([]models.Question, models.QuestionCount),
	}
	newer := &models.InterviewSession{
		SessionID:   "newer",
		CandidateID: "c2",
		Status:      models.SessionActive,
		StartTime:   time.Now(),
		Questions:   make([]models.Question, models.QuestionCount),
	}
	_ = h.sessions.Create(context.Background(), older)
	_ = h.sessions.Create(context.Background(), newer)
	_ = h.candidates.Insert(context.Background(), &models.Candidate{ID: "c1", Name: "One"})
	_ = h.candidates.Insert(context.Background(), &models.Candidate{ID: "c2", Name: "Two"})

	cand, sess, err := h.svc.FindActiveSession(context.Background())
	if err != nil {
		t.Fatalf("FindActiveSession error: %v", err)
	}
	if sess.SessionID != "newer" || cand.ID != "c2" {
		t.Fatalf("got session %q candidate %q, want the newest", sess.SessionID, cand.ID)
	}
}

func TestFindActiveSessionNotFound(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, _, err := h.svc.FindActiveSession(context.Background())
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

// answerAllWithCompletionFailure answers every slot while the final
// completion write fails, leaving the session active with all six slots
// scored.
func answerAllWithCompletionFailure(t *testing.T, h *harness, sessionID string) {
	t.Helper()
	h.sessions.completeErr = errors.New("mongo write timeout")

	var lastErr error
	for i := 0; i < models.QuestionCount; i++ {
		_, lastErr = h.svc.SubmitAnswer(context.Background(), sessionID, i, "answer")
	}
	if !utils.IsCode(lastErr, utils.CodeInternal) {
		t.Fatalf("last submit: expected INTERNAL, got %v", lastErr)
	}

	got, err := h.svc.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.Status != models.SessionActive || !got.Exhausted() {
		t.Fatalf("session is status=%q index=%d, want active with all slots answered", got.Status, got.CurrentQuestionIndex)
	}
}

func TestCurrentQuestionRecoversFailedCompletion(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)
	answerAllWithCompletionFailure(t, h, sess.SessionID)

	// a reloaded client asks for the current question; that call must
	// finish the completion instead of reporting a broken session
	q, rem, err := h.svc.CurrentQuestion(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("CurrentQuestion error: %v", err)
	}
	if q != nil || rem != 0 {
		t.Fatalf("got question %+v remaining %d, want the completed marker", q, rem)
	}

	got, _ := h.svc.GetSession(context.Background(), sess.SessionID)
	if got.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.FinalScore == nil || *got.FinalScore != 50 {
		t.Fatalf("final score = %v, want 50", got.FinalScore)
	}
	if got.EndTime == nil {
		t.Fatal("end time not set")
	}
}

func TestResubmitRecoversFailedCompletion(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)
	answerAllWithCompletionFailure(t, h, sess.SessionID)

	// the client retries the last submit; the slot is already written,
	// so the call finishes the completion and reports the conflict
	_, err := h.svc.SubmitAnswer(context.Background(), sess.SessionID, models.QuestionCount-1, "answer")
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if calls := h.llm.ScoreCalls(); calls != models.QuestionCount {
		t.Fatalf("scorer called %d times, want %d", calls, models.QuestionCount)
	}

	got, _ := h.svc.GetSession(context.Background(), sess.SessionID)
	if got.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.FinalScore == nil || *got.FinalScore != 50 {
		t.Fatalf("final score = %v, want 50", got.FinalScore)
	}
}

func TestRetrySummaryRecoversFailedCompletion(t *testing.T) {
	h := newHarness(t, nil, 0)
	_, sess := startSession(t, h)
	answerAllWithCompletionFailure(t, h, sess.SessionID)

	got, err := h.svc.RetrySummary(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("RetrySummary error: %v", err)
	}
	if got.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.Summary == "" {
		t.Fatal("summary not set")
	}
}

func TestTeardownPausesCountdownUntilNextFetch(t *testing.T) {
	h := newHarness(t, nil, 10*time.Millisecond)
	_, sess := startSession(t, h)

	// let the clock run down a few seconds, then detach
	time.Sleep(60 * time.Millisecond)
	h.svc.Teardown(sess.SessionID)

	if _, _, ok := h.timers.Remaining(sess.SessionID); ok {
		t.Fatal("countdown still ticking after Teardown")
	}

	// while detached nothing fires and nothing is persisted
	time.Sleep(60 * time.Millisecond)
	got, err := h.svc.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.Status != models.SessionActive || got.CurrentQuestionIndex != 0 {
		t.Fatalf("session mutated while detached: status=%q index=%d", got.Status, got.CurrentQuestionIndex)
	}
	if got.Questions[0].Answered() {
		t.Fatal("question auto-submitted while detached")
	}

	// reconnecting resumes the saved clock, not the full limit
	_, rem, err := h.svc.CurrentQuestion(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("CurrentQuestion error: %v", err)
	}
	if rem >= models.QuestionPlan[0].TimeLimit {
		t.Fatalf("remaining = %d, clock restarted from the full limit", rem)
	}
	if rem <= 0 {
		t.Fatalf("remaining = %d after resume", rem)
	}
}

func TestCurrentQuestionDoesNotRestartCountdown(t *testing.T) {
	h := newHarness(t, nil, 50*time.Millisecond)
	_, sess := startSession(t, h)

	// let a few ticks elapse
	time.Sleep(200 * time.Millisecond)

	_, rem1, err := h.svc.CurrentQuestion(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("CurrentQuestion error: %v", err)
	}
	if rem1 >= models.QuestionPlan[0].TimeLimit {
		t.Fatalf("remaining = %d, countdown was restarted", rem1)
	}

	_, rem2, err := h.svc.CurrentQuestion(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("CurrentQuestion error: %v", err)
	}
	if rem2 > rem1 {
		t.Fatalf("remaining went up from %d to %d", rem1, rem2)
	}
}
