package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/grouptask/taskflow/internal/data_models"
)

func ValidateCreateTaskRequest(r *dto.CreateTaskRequest) error {
	if r.GroupID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "group_id is required")
	}
	if r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if r.CreatorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "creator_id is required")
	}
	if r.DueAt.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "due_at is required")
	}
	return nil
}

func ValidateCreateTemplateRequest(r *dto.CreateTemplateRequest) error {
	if r.GroupID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "group_id is required")
	}
	if r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if r.Kind == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "kind is required")
	}
	if r.TimeOfDay == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "time_of_day is required")
	}
	if r.Timezone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "timezone is required")
	}
	return nil
}

func ValidateActor(actorID string) error {
	if actorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actor_id is required")
	}
	return nil
}
