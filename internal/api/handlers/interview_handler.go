package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

type InterviewHandler struct {
	svc services.InterviewService
}

func NewInterviewHandler(svc services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type StartInterviewRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Phone        string `json:"phone"`
	ResumeURL    string `json:"resume_url"`
	ResumeFileID string `json:"resume_file_id"`
}

type InterviewStateResponse struct {
	Candidate *models.Candidate        `json:"candidate,omitempty"`
	Session   *models.InterviewSession `json:"session"`
}

func (h *InterviewHandler) Start(c *gin.Context) {
	var req StartInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Start", "invalid request body", err))
		return
	}

	cand, sess, err := h.svc.StartSession(c.Request.Context(), services.StartInterviewInput{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		ResumeURL:    req.ResumeURL,
		ResumeFileID: req.ResumeFileID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InterviewStateResponse{Candidate: cand, Session: sess})
}

func (h *InterviewHandler) Get(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, InterviewStateResponse{Session: sess})
}

type CurrentQuestionResponse struct {
	Status           models.SessionStatus `json:"status"`
	QuestionIndex    int                  `json:"question_index"`
	Question         *models.Question     `json:"question,omitempty"`
	RemainingSeconds int                  `json:"remaining_seconds"`
}

func (h *InterviewHandler) CurrentQuestion(c *gin.Context) {
	sessionID := c.Param("session_id")

	sess, err := h.svc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	q, remaining, err := h.svc.CurrentQuestion(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CurrentQuestionResponse{
		Status:           sess.Status,
		QuestionIndex:    sess.CurrentQuestionIndex,
		Question:         q,
		RemainingSeconds: remaining,
	})
}

type SubmitAnswerRequest struct {
	// QuestionIndex is the slot the client believes is current; a stale
	// value gets CONFLICT instead of answering the wrong question.
	QuestionIndex *int   `json:"question_index" binding:"required"`
	Answer        string `json:"answer" binding:"required"`
}

func (h *InterviewHandler) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.SubmitAnswer", "invalid request body", err))
		return
	}

	sess, err := h.svc.SubmitAnswer(c.Request.Context(), c.Param("session_id"), *req.QuestionIndex, req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, InterviewStateResponse{Session: sess})
}

// Active backs resume-on-reload: the client asks whether an interview is
// still in flight before showing the start form.
func (h *InterviewHandler) Active(c *gin.Context) {
	cand, sess, err := h.svc.FindActiveSession(c.Request.Context())
	if err != nil {
		if utils.IsCode(err, utils.CodeNotFound) {
			c.JSON(http.StatusOK, gin.H{"active": false})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":    true,
		"candidate": cand,
		"session":   sess,
	})
}

func (h *InterviewHandler) RetrySummary(c *gin.Context) {
	sess, err := h.svc.RetrySummary(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, InterviewStateResponse{Session: sess})
}
