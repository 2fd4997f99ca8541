package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/cache"
	"github.com/hireloop/hireloop/internal/models"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/utils"
)

// Sort orders accepted by the candidate list.
const (
	SortByDate  = "date"
	SortByScore = "score"
	SortByName  = "name"
)

// DashboardQuery narrows and orders the candidate list. Zero values mean
// no search, all statuses, newest first.
type DashboardQuery struct {
	Search string
	Status models.InterviewStatus
	SortBy string
}

type DashboardStats struct {
	TotalCandidates int     `json:"total_candidates"`
	Completed       int     `json:"completed"`
	InProgress      int     `json:"in_progress"`
	AverageScore    float64 `json:"average_score"` // completed candidates only
	TopScore        int     `json:"top_score"`
}

type DashboardService interface {
	List(ctx context.Context, q DashboardQuery) ([]models.Candidate, error)
	Stats(ctx context.Context) (DashboardStats, error)
	// CandidateDetail returns the candidate and their latest interview
	// session; the session is nil when none exists yet.
	CandidateDetail(ctx context.Context, id string) (*models.Candidate, *models.InterviewSession, error)
	Similar(ctx context.Context, id string, limit int) ([]models.Candidate, error)
	// DeleteCandidate removes the candidate and their interview session.
	// Admin only; enforced at the route layer.
	DeleteCandidate(ctx context.Context, id string) error
}

type dashboardService struct {
	candidates pgrepo.CandidateRepository
	sessions   mongorepo.SessionRepository
	cache      cache.Cache // optional
	log        *logrus.Logger
}

func NewDashboardService(
	candidates pgrepo.CandidateRepository,
	sessions mongorepo.SessionRepository,
	c cache.Cache,
	log *logrus.Logger,
) DashboardService {
	return &dashboardService{candidates: candidates, sessions: sessions, cache: c, log: log}
}

func (s *dashboardService) List(ctx context.Context, q DashboardQuery) ([]models.Candidate, error) {
	const op = "DashboardService.List"
	all, err := s.candidates.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list candidates", err)
	}
	out := FilterCandidates(all, q.Search, q.Status)
	SortCandidates(out, q.SortBy)
	return out, nil
}

const statsCacheKey = "dashboard:stats"

func (s *dashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	const op = "DashboardService.Stats"

	var stats DashboardStats
	if s.cache != nil {
		if hit, err := s.cache.GetJSON(ctx, statsCacheKey, &stats); err != nil {
			s.log.WithError(err).Warn("stats cache read failed")
		} else if hit {
			return stats, nil
		}
	}

	all, err := s.candidates.List(ctx)
	if err != nil {
		return DashboardStats{}, utils.E(utils.CodeInternal, op, "failed to list candidates", err)
	}
	stats = ComputeStats(all)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, statsCacheKey, stats, 30*time.Second); err != nil {
			s.log.WithError(err).Warn("stats cache write failed")
		}
	}
	return stats, nil
}

func (s *dashboardService) CandidateDetail(ctx context.Context, id string) (*models.Candidate, *models.InterviewSession, error) {
	const op = "DashboardService.CandidateDetail"
	cand, err := s.candidates.GetByID(ctx, id)
	if err != nil {
		if err == utils.ErrNotFound {
			return nil, nil, utils.E(utils.CodeNotFound, op, "candidate not found", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to load candidate", err)
	}

	sess, err := s.sessions.GetByCandidateID(ctx, id)
	if err != nil {
		if err != utils.ErrNotFound {
			return nil, nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
		}
		sess = nil
	}
	return cand, sess, nil
}

func (s *dashboardService) Similar(ctx context.Context, id string, limit int) ([]models.Candidate, error) {
	const op = "DashboardService.Similar"
	out, err := s.candidates.SimilarByEmbedding(ctx, id, limit)
	if err != nil {
		if err == utils.ErrNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "candidate not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to look up similar candidates", err)
	}
	return out, nil
}

func (s *dashboardService) DeleteCandidate(ctx context.Context, id string) error {
	const op = "DashboardService.DeleteCandidate"

	cand, err := s.candidates.GetByID(ctx, id)
	if err != nil {
		if err == utils.ErrNotFound {
			return utils.E(utils.CodeNotFound, op, "candidate not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load candidate", err)
	}

	if sess, err := s.sessions.GetByCandidateID(ctx, cand.ID); err == nil {
		if err := s.sessions.Delete(ctx, sess.SessionID); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to delete session", err)
		}
	} else if err != utils.ErrNotFound {
		return utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	if err := s.candidates.Delete(ctx, cand.ID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete candidate", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, statsCacheKey); err != nil {
			s.log.WithError(err).Warn("stats cache invalidation failed")
		}
	}
	return nil
}

// FilterCandidates keeps candidates matching the search term (name or
// email, case-insensitive substring) and the status filter.
func FilterCandidates(in []models.Candidate, search string, status models.InterviewStatus) []models.Candidate {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Candidate, 0, len(in))
	for _, c := range in {
		if status != "" && c.InterviewStatus != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Email), search) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SortCandidates orders in place. Score sorts highest first with unscored
// candidates last; name sorts alphabetically; anything else is newest
// first.
func SortCandidates(cands []models.Candidate, sortBy string) {
	switch sortBy {
	case SortByScore:
		sort.SliceStable(cands, func(i, j int) bool {
			si, sj := cands[i].FinalScore, cands[j].FinalScore
			switch {
			case si == nil && sj == nil:
				return false
			case si == nil:
				return false
			case sj == nil:
				return true
			default:
				return *si > *sj
			}
		})
	case SortByName:
		sort.SliceStable(cands, func(i, j int) bool {
			return strings.ToLower(cands[i].Name) < strings.ToLower(cands[j].Name)
		})
	default:
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].CreatedDate.After(cands[j].CreatedDate)
		})
	}
}

// ComputeStats aggregates the candidate list. AverageScore averages the
// final scores of completed candidates, rounded to one decimal.
func ComputeStats(cands []models.Candidate) DashboardStats {
	stats := DashboardStats{TotalCandidates: len(cands)}
	sum := 0
	for _, c := range cands {
		switch c.InterviewStatus {
		case models.InterviewCompleted:
			stats.Completed++
			if c.FinalScore != nil {
				sum += *c.FinalScore
				if *c.FinalScore > stats.TopScore {
					stats.TopScore = *c.FinalScore
				}
			}
		case models.InterviewInProgress:
			stats.InProgress++
		}
	}
	if stats.Completed > 0 {
		stats.AverageScore = math.Round(float64(sum)/float64(stats.Completed)*10) / 10
	}
	return stats
}
