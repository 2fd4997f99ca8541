package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/hireloop/hireloop/internal/api/handlers"
	"github.com/hireloop/hireloop/internal/api/middleware"
)

type Deps struct {
	Auth      *handlers.AuthHandler
	Interview *handlers.InterviewHandler
	Resume    *handlers.ResumeHandler
	Dashboard *handlers.DashboardHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/auth/login", d.Auth.Login)

	// Candidate-facing routes. Candidates have no accounts; the session
	// id is the only handle.
	r.POST("/resume/upload", d.Resume.Upload)
	r.POST("/interview/start", d.Interview.Start)
	r.GET("/interview/active", d.Interview.Active)
	r.GET("/interview/:session_id", d.Interview.Get)
	r.GET("/interview/:session_id/question", d.Interview.CurrentQuestion)
	r.POST("/interview/:session_id/answer", d.Interview.SubmitAnswer)
	r.POST("/interview/:session_id/summary/retry", d.Interview.RetrySummary)

	// WebSocket: timer ticks and transcripts down, drafts and audio up
	r.GET("/ws/interview/:session_id", d.WS.SessionWS)

	// Interviewer dashboard (JWT)
	dash := r.Group("/dashboard")
	dash.Use(middleware.JWTAuth())

	dash.GET("/candidates", d.Dashboard.Candidates)
	dash.GET("/candidates/:id", d.Dashboard.Candidate)
	dash.GET("/candidates/:id/similar", d.Dashboard.Similar)
	dash.GET("/stats", d.Dashboard.Stats)
	dash.GET("/resumes/:id/download", d.Resume.Download)

	dash.DELETE("/candidates/:id", middleware.RequireAdmin(), d.Dashboard.DeleteCandidate)
}
