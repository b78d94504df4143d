package sqlstore

import (
	"context"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
)

type shareRow struct {
	ID              string `db:"id"`
	ResourceType    string `db:"resource_type"`
	ResourceID      string `db:"resource_id"`
	OwnerID         string `db:"owner_id"`
	SharedWithID    string `db:"shared_with_id"`
	Permission      string `db:"permission"`
	CreatedAt       int64  `db:"created_at"`
	OwnerEmail      string `db:"owner_email"`
	SharedWithEmail string `db:"shared_with_email"`
}

func (r shareRow) share() sias.Share {
	return sias.Share{
		ID:              r.ID,
		ResourceType:    r.ResourceType,
		ResourceID:      r.ResourceID,
		OwnerID:         r.OwnerID,
		SharedWithID:    r.SharedWithID,
		Permission:      access.Permission(r.Permission),
		CreatedAt:       fromMillis(r.CreatedAt),
		OwnerEmail:      r.OwnerEmail,
		SharedWithEmail: r.SharedWithEmail,
	}
}

// FindShareGrants implements [access.ShareFinder].
func (s *Store) FindShareGrants(ctx context.Context, ownerID, sharedWith, resourceType, resourceID string) ([]access.Grant, error) {
	var perms []string
	err := s.db.SelectContext(ctx, &perms, s.q(`
		SELECT permission FROM dac_shares
		WHERE shared_with_id = ? AND resource_type = ? AND resource_id = ? AND owner_id = ?`),
		sharedWith, resourceType, resourceID, ownerID,
	)
	if err != nil {
		return nil, wrap("find share grants", err)
	}
	grants := make([]access.Grant, 0, len(perms))
	for _, p := range perms {
		grants = append(grants, access.Grant{Permission: access.Permission(p)})
	}
	return grants, nil
}

// ResourceOwner implements [sias.ShareStore]. A course belongs to its
// instructor and a transcript to the identity it describes.
func (s *Store) ResourceOwner(ctx context.Context, resourceType, resourceID string) (string, error) {
	var query string
	switch resourceType {
	case sias.ResourceCourse:
		query = `SELECT COALESCE(instructor_user_id, '') FROM courses WHERE id = ?`
	case sias.ResourceTranscript:
		query = `SELECT id FROM users WHERE id = ?`
	default:
		return "", sias.ErrNotFound
	}
	var owner string
	if err := s.db.GetContext(ctx, &owner, s.q(query), resourceID); err != nil {
		return "", wrap("resource owner", err)
	}
	return owner, nil
}

// InsertShare implements [sias.ShareStore].
func (s *Store) InsertShare(ctx context.Context, share sias.Share) (*sias.Share, error) {
	share.ID = s.newID()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO dac_shares (id, resource_type, resource_id, owner_id, shared_with_id, permission, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		share.ID, share.ResourceType, share.ResourceID, share.OwnerID, share.SharedWithID,
		string(share.Permission), millis(share.CreatedAt),
	)
	if err != nil {
		return nil, wrap("insert share", err)
	}
	return &share, nil
}

// DeleteShare implements [sias.ShareStore].
func (s *Store) DeleteShare(ctx context.Context, ownerID, shareID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM dac_shares WHERE id = ? AND owner_id = ?`),
		shareID, ownerID,
	)
	if err != nil {
		return false, wrap("delete share", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("delete share", err)
	}
	return n > 0, nil
}

const shareSelect = `
	SELECT s.id, s.resource_type, s.resource_id, s.owner_id, s.shared_with_id, s.permission, s.created_at,
		o.email AS owner_email, w.email AS shared_with_email
	FROM dac_shares s
	JOIN users o ON o.id = s.owner_id
	JOIN users w ON w.id = s.shared_with_id`

// ListSharesByOwner implements [sias.ShareStore].
func (s *Store) ListSharesByOwner(ctx context.Context, ownerID string) ([]sias.Share, error) {
	return s.listShares(ctx, "list shares by owner", shareSelect+` WHERE s.owner_id = ? ORDER BY s.created_at DESC, s.id`, ownerID)
}

// ListSharesWithUser implements [sias.ShareStore].
func (s *Store) ListSharesWithUser(ctx context.Context, userID string) ([]sias.Share, error) {
	return s.listShares(ctx, "list shares with user", shareSelect+` WHERE s.shared_with_id = ? ORDER BY s.created_at DESC, s.id`, userID)
}

func (s *Store) listShares(ctx context.Context, op, query string, arg any) ([]sias.Share, error) {
	var rows []shareRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), arg); err != nil {
		return nil, wrap(op, err)
	}
	out := make([]sias.Share, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.share())
	}
	return out, nil
}
