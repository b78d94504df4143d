package flows

import "context"

type LogoutSessionStore interface {
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// LogoutDeps captures sign-out dependencies.
type LogoutDeps struct {
	SessionStore LogoutSessionStore
	ValidToken   func(string) bool
}

// RunLogout deletes the session for token. Unknown or malformed tokens are
// not an error.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) error {
	if token == "" || (deps.ValidToken != nil && !deps.ValidToken(token)) {
		return nil
	}
	return deps.SessionStore.Delete(ctx, token)
}

// RunLogoutAll deletes every session owned by userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return deps.SessionStore.DeleteAllForUser(ctx, userID)
}
