package task

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/audit"
	"github.com/ehr/docportal/internal/platform/auth"
)

type Handler struct {
	svc   *Service
	audit audit.Recorder
}

func NewHandler(svc *Service, rec audit.Recorder) *Handler {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Handler{svc: svc, audit: rec}
}

// RegisterRoutes mounts task routes on the session-protected API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/add-manual-task", h.AddManualTask)
	api.GET("/tasks", h.ListTasks)
	api.GET("/tasks/export", h.ExportTasks)
	api.POST("/tasks/:id/claim", h.ClaimTask)
	api.POST("/tasks/:id/complete", h.CompleteTask)
	api.GET("/office-pulse", h.OfficePulse)
}

func (h *Handler) AddManualTask(c echo.Context) error {
	var in ManualTaskInput
	if err := apperr.Bind(c, &in); err != nil {
		return err
	}
	if err := ValidateManualTask(&in); err != nil {
		return err
	}

	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}

	t, err := h.svc.CreateManualTask(c.Request().Context(), owner, id.UserID, in)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Created manual task for patient %s", t.Patient))
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTasks(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}

	items, err := h.svc.ListTasks(c.Request().Context(), ListFilter{
		PhysicianID: owner,
		Status:      c.QueryParam("status"),
		Department:  c.QueryParam("department"),
	})
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, "Viewed task list")
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) OfficePulse(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}

	items, pulse, err := h.svc.OfficePulse(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, "Viewed office pulse")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tasks": items,
		"pulse": pulse,
	})
}

func (h *Handler) ClaimTask(c echo.Context) error {
	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	t, err := h.svc.Claim(c.Request().Context(), owner, id.UserID, c.Param("id"))
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Claimed task %s", t.ID))
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CompleteTask(c echo.Context) error {
	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	t, err := h.svc.Complete(c.Request().Context(), owner, id.UserID, c.Param("id"))
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Completed task %s", t.ID))
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ExportTasks(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}

	items, err := h.svc.ListTasks(c.Request().Context(), ListFilter{
		PhysicianID: owner,
		Status:      c.QueryParam("status"),
		Department:  c.QueryParam("department"),
	})
	if err != nil {
		return err
	}
	data, err := ExportWorkbook(items)
	if err != nil {
		return err
	}

	audit.Access(c, h.audit, "Exported task list")
	name := fmt.Sprintf("tasks-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
