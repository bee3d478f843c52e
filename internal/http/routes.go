package http

import (
	"time"

	"github.com/labstack/echo/v4"

	middleware "github.com/grouptask/taskflow/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.POST("/tasks", h.CreateTask)
	e.GET("/tasks/:id", h.GetTask)
	e.DELETE("/tasks/:id", h.DeleteTask)
	e.POST("/tasks/:id/submit", h.SubmitTask)
	e.POST("/tasks/:id/review/request", h.RequestReview)
	e.POST("/tasks/:id/review/approve", h.ApproveReview)
	e.POST("/tasks/:id/review/reject", h.RejectReview)
	e.POST("/tasks/:id/approve", h.ApproveCompletion)
	e.POST("/tasks/:id/cancel", h.CancelTask)
	e.GET("/tasks/:id/history", h.TaskHistory)
	e.GET("/tasks/:id/submissions", h.TaskSubmissions)

	e.POST("/templates", h.CreateTemplate)
	e.POST("/templates/:id/toggle", h.ToggleTemplate)
	e.DELETE("/templates/:id", h.DeleteTemplate)

	e.POST("/tick", h.Tick)

	e.GET("/groups/:id/leaderboard", h.Leaderboard)
	e.POST("/groups/:id/members", h.AddMember)
}
