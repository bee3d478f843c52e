package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grouptask/taskflow/internal/clock"
	"github.com/grouptask/taskflow/internal/constants"
	dto "github.com/grouptask/taskflow/internal/data_models"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	"github.com/grouptask/taskflow/internal/http/validators"
	model "github.com/grouptask/taskflow/internal/models"
	repository "github.com/grouptask/taskflow/internal/repositories"
	"github.com/grouptask/taskflow/internal/services"
)

type Handler struct {
	tasks       *services.TaskService
	templates   *services.TemplateService
	scheduler   *services.SchedulerService
	leaderboard *services.LeaderboardService
	members     *repository.MemberRepository
	clk         clock.Clock
}

func NewHandler(
	tasks *services.TaskService,
	templates *services.TemplateService,
	scheduler *services.SchedulerService,
	leaderboard *services.LeaderboardService,
	members *repository.MemberRepository,
	clk clock.Clock,
) *Handler {
	return &Handler{
		tasks:       tasks,
		templates:   templates,
		scheduler:   scheduler,
		leaderboard: leaderboard,
		members:     members,
		clk:         clk,
	}
}

// toHTTPError surfaces typed core errors verbatim; anything else is a 500.
func toHTTPError(err error) error {
	var appErr *apperrors.Exception
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.StatusCode, appErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func (h *Handler) CreateTask(c echo.Context) error {
	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.tasks.CreateTask(c.Request().Context(), services.CreateTaskSpec{
		GroupID:           req.GroupID,
		Title:             req.Title,
		Description:       req.Description,
		Priority:          constants.Priority(req.Priority),
		Tags:              req.Tags,
		AssigneeIDs:       req.AssigneeIDs,
		CreatorID:         req.CreatorID,
		ReviewerID:        req.ReviewerID,
		StartAt:           req.StartAt,
		DueAt:             req.DueAt,
		RequireAttachment: req.RequireAttachment,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.tasks.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c echo.Context) error {
	if err := h.tasks.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SubmitTask(c echo.Context) error {
	var req dto.SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateActor(req.ActorID); err != nil {
		return err
	}

	task, err := h.tasks.Submit(c.Request().Context(), c.Param("id"), req.ActorID, services.SubmitPayload{
		Comment:  req.Comment,
		FileRefs: req.FileRefs,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) RequestReview(c echo.Context) error {
	return h.actorTransition(c, h.tasks.RequestReview)
}

func (h *Handler) ApproveReview(c echo.Context) error {
	return h.actorTransition(c, h.tasks.ApproveReview)
}

func (h *Handler) RejectReview(c echo.Context) error {
	var req dto.RejectReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateActor(req.ActorID); err != nil {
		return err
	}

	task, err := h.tasks.RejectReview(c.Request().Context(), c.Param("id"), req.ActorID, req.NewDue, req.Note)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ApproveCompletion(c echo.Context) error {
	return h.actorTransition(c, h.tasks.ApproveCompletion)
}

func (h *Handler) CancelTask(c echo.Context) error {
	return h.actorTransition(c, h.tasks.Cancel)
}

func (h *Handler) actorTransition(
	c echo.Context,
	fn func(ctx context.Context, taskID, actorID string) (*model.Task, error),
) error {
	var req dto.ActorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateActor(req.ActorID); err != nil {
		return err
	}

	task, err := fn(c.Request().Context(), c.Param("id"), req.ActorID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) TaskHistory(c echo.Context) error {
	entries, err := h.tasks.ListHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(entries), "history": entries})
}

func (h *Handler) TaskSubmissions(c echo.Context) error {
	subs, err := h.tasks.ListSubmissions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(subs), "submissions": subs})
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var req dto.CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTemplateRequest(&req); err != nil {
		return err
	}

	tpl, err := h.templates.CreateTemplate(c.Request().Context(), services.CreateTemplateSpec{
		GroupID:      req.GroupID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     constants.Priority(req.Priority),
		AssigneeIDs:  req.AssigneeIDs,
		ReviewerID:   req.ReviewerID,
		CreatorID:    req.CreatorID,
		Kind:         constants.RecurrenceKind(req.Kind),
		Weekday:      req.Weekday,
		DayOfMonth:   req.DayOfMonth,
		TimeOfDay:    req.TimeOfDay,
		Timezone:     req.Timezone,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) ToggleTemplate(c echo.Context) error {
	var req dto.ToggleTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	tpl, err := h.templates.Toggle(c.Request().Context(), c.Param("id"), req.Active)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	if err := h.templates.DeleteTemplate(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Tick lets an external cron trigger the scheduler on demand.
func (h *Handler) Tick(c echo.Context) error {
	created, err := h.scheduler.Tick(c.Request().Context(), h.clk.Now())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"materialized": created, "count": len(created)})
}

func (h *Handler) Leaderboard(c echo.Context) error {
	name := constants.PeriodName(c.QueryParam("period"))
	if name == "" {
		name = constants.PeriodWeekly
	}

	var start, end time.Time
	if name == constants.PeriodCustom {
		var err error
		if start, err = time.Parse(time.RFC3339, c.QueryParam("start")); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "start must be RFC3339")
		}
		if end, err = time.Parse(time.RFC3339, c.QueryParam("end")); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "end must be RFC3339")
		}
	}

	period, err := h.leaderboard.ResolvePeriod(name, start, end)
	if err != nil {
		return toHTTPError(err)
	}

	ranked, err := h.leaderboard.Aggregate(c.Request().Context(), c.Param("id"), period)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"period": period, "ranking": ranked})
}

func (h *Handler) AddMember(c echo.Context) error {
	var req dto.AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	if err := h.members.Add(c.Request().Context(), c.Param("id"), req.UserID, h.clk.Now()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add member")
	}
	return c.NoContent(http.StatusCreated)
}
