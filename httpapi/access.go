package httpapi

import (
	"net/http"
	"time"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
)

type shareResponse struct {
	ID              string            `json:"id"`
	ResourceType    string            `json:"resourceType"`
	ResourceID      string            `json:"resourceId"`
	Permission      access.Permission `json:"permission"`
	OwnerEmail      string            `json:"ownerEmail,omitempty"`
	SharedWithEmail string            `json:"sharedWithEmail,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func newShareResponses(shares []sias.Share) []shareResponse {
	out := make([]shareResponse, 0, len(shares))
	for _, s := range shares {
		out = append(out, shareResponse{
			ID:              s.ID,
			ResourceType:    s.ResourceType,
			ResourceID:      s.ResourceID,
			Permission:      s.Permission,
			OwnerEmail:      s.OwnerEmail,
			SharedWithEmail: s.SharedWithEmail,
			CreatedAt:       s.CreatedAt,
		})
	}
	return out
}

// Share handles POST /api/dac/share.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceType    string `json:"resourceType"`
		ResourceID      string `json:"resourceId"`
		SharedWithEmail string `json:"sharedWithEmail"`
		Permission      string `json:"permission"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	share, err := h.engine.ShareResource(r.Context(), principal(r), sias.ShareRequest{
		ResourceType:    req.ResourceType,
		ResourceID:      req.ResourceID,
		SharedWithEmail: req.SharedWithEmail,
		Permission:      access.Permission(req.Permission),
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"shareId": share.ID,
	})
}

// Revoke handles POST /api/dac/revoke.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShareID string `json:"shareId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.RevokeShare(r.Context(), principal(r), req.ShareID); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListShares handles GET /api/dac/list.
func (h *Handler) ListShares(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListShares(r.Context(), principal(r))
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sharedByMe":   newShareResponses(list.SharedByMe),
		"sharedWithMe": newShareResponses(list.SharedWithMe),
	})
}

type gradeResponse struct {
	ID            string               `json:"id"`
	Grade         string               `json:"grade"`
	CourseCode    string               `json:"courseCode"`
	CourseTitle   string               `json:"courseTitle"`
	SecurityLevel access.SecurityLevel `json:"securityLevel"`
}

// ListGrades handles GET /api/grades. Only grades the caller's clearance
// dominates are returned.
func (h *Handler) ListGrades(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListGrades(r.Context(), principal(r))
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	grades := make([]gradeResponse, 0, len(list.Grades))
	for _, g := range list.Grades {
		grades = append(grades, gradeResponse{
			ID:            g.ID,
			Grade:         g.Grade,
			CourseCode:    g.CourseCode,
			CourseTitle:   g.CourseTitle,
			SecurityLevel: g.SecurityLevel,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"grades":            grades,
		"userSecurityLevel": list.UserSecurityLevel,
		"totalFound":        list.TotalFound,
		"accessibleCount":   list.AccessibleCount,
	})
}

// UpdateGrade handles PATCH /api/instructor/grades.
func (h *Handler) UpdateGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnrollmentID string `json:"enrollmentId"`
		Grade        string `json:"grade"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.engine.UpdateGrade(r.Context(), principal(r), sias.GradeUpdate{
		EnrollmentID: req.EnrollmentID,
		Grade:        req.Grade,
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DepartmentBudget handles GET /api/department/budget?department=.
func (h *Handler) DepartmentBudget(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.DepartmentReport(r.Context(), principal(r), r.URL.Query().Get("department"))
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"department": report.Department,
		"budget":     report.Budget,
		"message":    "Access Granted via ABAC",
	})
}
