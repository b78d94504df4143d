package httpapi

import (
	"net/http"
	"strconv"
	"time"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
	"github.com/gorilla/mux"
)

type auditLogResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId,omitempty"`
	UserName  string         `json:"userName,omitempty"`
	UserEmail string         `json:"userEmail,omitempty"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	IPAddress string         `json:"ipAddress"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditLogs handles GET /api/admin/audit-logs. Query parameters: page,
// limit, search, action, startDate, endDate. Dates are RFC 3339 or
// YYYY-MM-DD; a bare endDate covers the whole day.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseDate(q.Get("startDate"), false)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid startDate")
		return
	}
	to, err := parseDate(q.Get("endDate"), true)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid endDate")
		return
	}

	page, err := h.engine.QueryAuditLogs(r.Context(), principal(r), sias.AuditQuery{
		Search: q.Get("search"),
		Action: q.Get("action"),
		From:   from,
		To:     to,
		Page:   atoiOrZero(q.Get("page")),
		Limit:  atoiOrZero(q.Get("limit")),
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	logs := make([]auditLogResponse, 0, len(page.Entries))
	for _, e := range page.Entries {
		logs = append(logs, auditLogResponse{
			ID:        e.ID,
			UserID:    e.UserID,
			UserName:  e.UserName,
			UserEmail: e.UserEmail,
			Action:    e.Action,
			Resource:  e.Resource,
			IPAddress: e.IP,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"logs": logs,
		"pagination": map[string]int{
			"page":       page.Page,
			"limit":      page.Limit,
			"total":      page.Total,
			"totalPages": page.TotalPages,
		},
	})
}

// ChangeRole handles PATCH /api/admin/users/{id}/role.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.engine.ChangeRole(r.Context(), principal(r), id, access.Role(req.Role)); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}
