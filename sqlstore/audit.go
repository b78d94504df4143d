package sqlstore

import (
	"context"
	"strings"

	sias "github.com/MrEthical07/sias"
	"github.com/oklog/ulid/v2"
)

type auditRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Action    string `db:"action"`
	Resource  string `db:"resource"`
	IP        string `db:"ip_address"`
	Details   string `db:"details"`
	CreatedAt int64  `db:"created_at"`
	UserName  string `db:"user_name"`
	UserEmail string `db:"user_email"`
}

// InsertAuditEntry implements [sias.AuditStore]. Details are stored as given;
// the engine encrypts them before they get here.
func (s *Store) InsertAuditEntry(ctx context.Context, rec sias.AuditRecord) error {
	id := rec.ID
	if id == "" {
		id = ulid.Make().String()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO audit_log (id, user_id, action, resource, ip_address, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, nullString(rec.UserID), rec.Action, rec.Resource, rec.IP, rec.Details, millis(rec.Timestamp),
	)
	return wrap("insert audit entry", err)
}

// likeEscaper makes search text match literally inside LIKE ... ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// QueryAuditEntries implements [sias.AuditStore]. Rows come newest first.
// Search matches action, resource and IP case-insensitively.
func (s *Store) QueryAuditEntries(ctx context.Context, f sias.AuditFilter) ([]sias.AuditRecord, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		where = append(where, `(LOWER(a.action) LIKE ? ESCAPE '\' OR LOWER(a.resource) LIKE ? ESCAPE '\' OR LOWER(a.ip_address) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if f.Action != "" {
		where = append(where, `a.action = ?`)
		args = append(args, f.Action)
	}
	if !f.From.IsZero() {
		where = append(where, `a.created_at >= ?`)
		args = append(args, millis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, `a.created_at <= ?`)
		args = append(args, millis(f.To))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.q(`SELECT COUNT(*) FROM audit_log a`+clause), args...); err != nil {
		return nil, 0, wrap("count audit entries", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	var rows []auditRow
	query := `
		SELECT a.id, COALESCE(a.user_id, '') AS user_id, a.action, a.resource, a.ip_address, a.details, a.created_at,
			COALESCE(u.name, '') AS user_name, COALESCE(u.email, '') AS user_email
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.user_id` + clause + `
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ? OFFSET ?`
	pageArgs := append(append([]any(nil), args...), limit, f.Offset)
	if err := s.db.SelectContext(ctx, &rows, s.q(query), pageArgs...); err != nil {
		return nil, 0, wrap("query audit entries", err)
	}

	out := make([]sias.AuditRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, sias.AuditRecord{
			ID:        r.ID,
			UserID:    r.UserID,
			Action:    r.Action,
			Resource:  r.Resource,
			IP:        r.IP,
			Details:   r.Details,
			Timestamp: fromMillis(r.CreatedAt),
			UserName:  r.UserName,
			UserEmail: r.UserEmail,
		})
	}
	return out, total, nil
}
