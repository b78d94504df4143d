package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
)

// RequireSession rejects requests without a live session with 401 and
// attaches the principal for the next handler. Backend outages answer 500.
func RequireSession(engine *sias.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token, ok := SessionToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			p, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, sias.ErrSessionBackend) || errors.Is(err, sias.ErrStoreUnavailable) {
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(sias.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole admits principals whose role is exactly one of roles.
func RequireRole(roles ...access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := sias.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, want := range roles {
				if access.RoleIs(p.Role, want) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
