package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

type DashboardHandler struct {
	svc services.DashboardService
}

func NewDashboardHandler(svc services.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Candidates lists candidates with optional ?search=, ?status= and
// ?sort= (date|score|name).
func (h *DashboardHandler) Candidates(c *gin.Context) {
	const op = "DashboardHandler.Candidates"
	if _, ok := requireUserID(c); !ok {
		return
	}

	status := models.InterviewStatus(c.Query("status"))
	switch status {
	case "", models.InterviewNotStarted, models.InterviewInProgress, models.InterviewCompleted:
	default:
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unknown status filter", nil))
		return
	}

	out, err := h.svc.List(c.Request.Context(), services.DashboardQuery{
		Search: c.Query("search"),
		Status: status,
		SortBy: c.Query("sort"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": out, "count": len(out)})
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Candidate returns one candidate with their full interview transcript.
func (h *DashboardHandler) Candidate(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	cand, sess, err := h.svc.CandidateDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": cand, "session": sess})
}

func (h *DashboardHandler) DeleteCandidate(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	if err := h.svc.DeleteCandidate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) Similar(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	out, err := h.svc.Similar(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": out})
}
