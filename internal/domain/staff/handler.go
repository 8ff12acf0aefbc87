package staff

import (
	"net/http"

	"github.com/labstack/echo/v4"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/staff", h.ListStaff)
}

func (h *Handler) ListStaff(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.Roster(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, "Viewed staff roster")
	return c.JSON(http.StatusOK, map[string]interface{}{"staff": items})
}
