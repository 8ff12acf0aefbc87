package document

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/audit"
	"github.com/ehr/docportal/internal/platform/auth"
	"github.com/ehr/docportal/pkg/pagination"
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

// RegisterRoutes mounts document routes on the session-protected API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/get-patient", h.ListDocuments)
	api.GET("/get-patient/:id", h.GetDocument)
	api.GET("/get-failed-document", h.FailedDocuments)
	api.GET("/get-recent-patients", h.RecentPatients)
	api.GET("/patient-documents", h.PatientDocuments)
	api.GET("/dashboard/recommendation", h.Recommendations)
	api.GET("/dashboard/search-patient", h.SearchPatient)
	api.POST("/verify-document", h.VerifyDocument)
	api.PATCH("/update-document", h.UpdateDocument)
	api.POST("/patients/update", h.UpdatePatient)
	api.POST("/alerts/:id/resolve", h.ResolveAlert)
	api.GET("/documents/:id/file", h.FileLink)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	requested := strings.TrimSpace(c.QueryParam("physicianId"))
	if requested == "" {
		return apperr.Validation("physicianId is required")
	}

	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	if requested != owner {
		return apperr.Forbidden("Access denied for physician %s", requested)
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDocuments(c.Request().Context(), Filter{
		PhysicianID: owner,
		Status:      c.QueryParam("status"),
		Search:      c.QueryParam("search"),
	}, pg)
	if err != nil {
		return err
	}

	audit.Access(c, h.audit, "Viewed document list")
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Page, pg.Limit))
}

func (h *Handler) GetDocument(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	d, err := h.svc.GetDocument(c.Request().Context(), owner, c.Param("id"))
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Viewed document %s", d.ID))
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) FailedDocuments(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.FailedDocuments(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Document{}
	}
	audit.Access(c, h.audit, "Viewed failed documents")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"totalDocuments": len(items),
		"documents":      items,
	})
}

func (h *Handler) RecentPatients(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.RecentPatients(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Document{}
	}
	audit.Access(c, h.audit, "Viewed recent patients")
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PatientDocuments(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	f := Filter{
		PhysicianID: owner,
		PatientName: strings.TrimSpace(c.QueryParam("patientName")),
		DOB:         strings.TrimSpace(c.QueryParam("dob")),
		ClaimNumber: strings.TrimSpace(c.QueryParam("claimNumber")),
	}
	items, err := h.svc.PatientDocuments(c.Request().Context(), f)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Viewed documents for patient %s", f.PatientName))
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": items})
}

func (h *Handler) Recommendations(c echo.Context) error {
	query := c.QueryParam("patientName")
	if strings.TrimSpace(query) == "" {
		return apperr.Validation("patientName is required")
	}
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	names, err := h.svc.Recommendations(c.Request().Context(), owner, query)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, "Viewed patient recommendations")
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": names})
}

func (h *Handler) SearchPatient(c echo.Context) error {
	query := c.QueryParam("patientName")
	if strings.TrimSpace(query) == "" {
		return apperr.Validation("patientName is required")
	}
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.SearchPatient(c.Request().Context(), owner, query)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Searched patient %s", strings.TrimSpace(query)))
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": items})
}

func (h *Handler) VerifyDocument(c echo.Context) error {
	key := PatientKey{
		PatientName: strings.TrimSpace(c.QueryParam("patient_name")),
		DOB:         strings.TrimSpace(c.QueryParam("dob")),
		DOI:         strings.TrimSpace(c.QueryParam("doi")),
	}
	if key.PatientName == "" {
		return apperr.Validation("patient_name is required")
	}

	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	count, err := h.svc.VerifyPatient(c.Request().Context(), owner, id.UserID, key)
	if err != nil {
		return err
	}

	audit.Access(c, h.audit, fmt.Sprintf("Verified %d documents for patient %s", count, key.PatientName))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Verified %d documents", count),
		"count":   count,
	})
}

func (h *Handler) UpdateDocument(c echo.Context) error {
	docID := strings.TrimSpace(c.QueryParam("documentId"))
	if docID == "" {
		return apperr.Validation("documentId is required")
	}
	var p Patch
	if err := apperr.Bind(c, &p); err != nil {
		return err
	}

	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	d, err := h.svc.UpdateDocument(c.Request().Context(), owner, id.UserID, docID, p)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Updated document %s", d.ID))
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "document": d})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var u PatientUpdate
	if err := apperr.Bind(c, &u); err != nil {
		return err
	}

	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	count, p, err := h.svc.UpdatePatient(c.Request().Context(), owner, id.UserID, u)
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Updated patient %s across %d documents", p.PatientName, count))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"updatedCount": count,
		"patient":      p,
	})
}

func (h *Handler) ResolveAlert(c echo.Context) error {
	owner, id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	a, err := h.svc.ResolveAlert(c.Request().Context(), owner, id.UserID, c.Param("id"))
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Resolved alert %s", a.ID))
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "alert": a})
}

func (h *Handler) FileLink(c echo.Context) error {
	owner, _, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return err
	}
	link, err := h.svc.FileLink(c.Request().Context(), owner, c.Param("id"))
	if err != nil {
		return err
	}
	audit.Access(c, h.audit, fmt.Sprintf("Downloaded document %s", c.Param("id")))
	return c.JSON(http.StatusOK, link)
}
