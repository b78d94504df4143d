package sias

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/MrEthical07/sias/access"
	internalaudit "github.com/MrEthical07/sias/internal/audit"
	"go.uber.org/zap"
)

const (
	defaultAuditPage  = 1
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// emitAudit records an action. Delivery is best-effort and never fails the
// operation that triggered it.
func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	userID string,
	resource string,
	details map[string]any,
) {
	if e == nil || e.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}

	e.audit.Emit(ctx, internalaudit.Event{
		Timestamp: e.now().UTC(),
		Action:    action,
		UserID:    userID,
		Resource:  resource,
		IP:        clientIPFromContext(ctx),
		Details:   details,
	})
}

// auditAppender adapts the relational store to the audit sink.
type auditAppender struct {
	store AuditStore
}

func (a auditAppender) InsertAuditEntry(ctx context.Context, rec internalaudit.Record) error {
	return a.store.InsertAuditEntry(ctx, AuditRecord{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Action:    rec.Action,
		Resource:  rec.Resource,
		IP:        rec.IP,
		Details:   rec.Details,
		Timestamp: rec.Timestamp,
	})
}

func (e *Engine) auditWriteFailed(event internalaudit.Event, err error) {
	e.metricInc(MetricAuditWriteFailure)
	e.logger.Error("audit write failed",
		zap.String("action", event.Action),
		zap.String("user_id", event.UserID),
		zap.Error(err),
	)
}

func (e *Engine) auditDropped(event internalaudit.Event) {
	e.metricInc(MetricAuditWriteFailure)
	e.logger.Warn("audit event dropped", zap.String("action", event.Action))
}

// QueryAuditLogs returns a page of decrypted audit entries, newest first.
// Only admins may read the trail. Rows that fail to decrypt are returned
// with their plaintext JSON details when readable and empty details
// otherwise.
func (e *Engine) QueryAuditLogs(ctx context.Context, caller *Principal, q AuditQuery) (*AuditPage, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !access.RoleIs(caller.Role, access.RoleAdmin) {
		e.metricInc(MetricAccessDenied)
		return nil, fmt.Errorf("%w: admin role required", ErrAccessDenied)
	}

	page := q.Page
	if page < 1 {
		page = defaultAuditPage
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	rows, total, err := e.store.QueryAuditEntries(ctx, AuditFilter{
		Search: strings.TrimSpace(q.Search),
		Action: strings.TrimSpace(q.Action),
		From:   q.From,
		To:     q.To,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, e.fail("query audit logs", err)
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		details, openErr := e.auditCipher.Open(row.Details)
		if openErr != nil {
			e.metricInc(MetricAuditDecryptFailure)
			e.logger.Warn("audit details not decrypted", zap.String("id", row.ID), zap.Error(openErr))
		}
		entries = append(entries, AuditEntry{
			ID:        row.ID,
			UserID:    row.UserID,
			UserName:  row.UserName,
			UserEmail: row.UserEmail,
			Action:    row.Action,
			Resource:  row.Resource,
			IP:        row.IP,
			Details:   details,
			Timestamp: row.Timestamp,
		})
	}

	return &AuditPage{
		Entries:    entries,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}
