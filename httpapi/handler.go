package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Options configures a [Handler].
type Options struct {
	Cookies middleware.Cookies
	Logger  *zap.Logger
}

// Handler serves the portal API.
type Handler struct {
	engine  *sias.Engine
	cookies middleware.Cookies
	logger  *zap.Logger
}

// NewHandler returns a Handler over engine.
func NewHandler(engine *sias.Engine, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:  engine,
		cookies: opts.Cookies,
		logger:  logger,
	}
}

// SetupRoutes registers every route on router.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Public
	api.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", h.SignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/mfa/validate", h.ValidateMFA).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", h.SignOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", h.Session).Methods(http.MethodGet)
	api.HandleFunc("/auth/verify-email", h.VerifyEmail).Methods(http.MethodPost)
	api.HandleFunc("/auth/password/forgot", h.ForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/auth/password/reset", h.ResetPassword).Methods(http.MethodPost)

	// Session required
	api.Handle("/auth/mfa/setup", h.protect(h.MFASetup)).Methods(http.MethodPost)
	api.Handle("/auth/mfa/verify", h.protect(h.MFAVerify)).Methods(http.MethodPost)
	api.Handle("/auth/mfa/disable", h.protect(h.MFADisable)).Methods(http.MethodPost)

	api.Handle("/dac/share", h.protect(h.Share)).Methods(http.MethodPost)
	api.Handle("/dac/revoke", h.protect(h.Revoke)).Methods(http.MethodPost)
	api.Handle("/dac/list", h.protect(h.ListShares)).Methods(http.MethodGet)

	api.Handle("/grades", h.protect(h.ListGrades)).Methods(http.MethodGet)
	api.Handle("/instructor/grades", h.protect(h.UpdateGrade)).Methods(http.MethodPatch)
	api.Handle("/department/budget", h.protect(h.DepartmentBudget)).Methods(http.MethodGet)

	api.Handle("/admin/audit-logs", h.protect(h.AuditLogs)).Methods(http.MethodGet)
	api.Handle("/admin/users/{id}/role", h.protect(h.ChangeRole)).Methods(http.MethodPatch)
}

func (h *Handler) protect(fn http.HandlerFunc) http.Handler {
	return middleware.RequireSession(h.engine)(fn)
}

// Health reports whether Redis and the database answer.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func principal(r *http.Request) *sias.Principal {
	p, _ := sias.PrincipalFromContext(r.Context())
	return p
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError writes the public form of an engine error.
func (h *Handler) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Debug("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondError(w, status, sias.PublicMessage(err))
}

// statusFor maps an engine error to its HTTP status. A locked account
// answers 403; other throttles answer 429.
func statusFor(err error) int {
	switch sias.Classify(err) {
	case sias.KindAuthentication:
		return http.StatusUnauthorized
	case sias.KindAuthorization:
		return http.StatusForbidden
	case sias.KindNotFound:
		return http.StatusNotFound
	case sias.KindValidation:
		return http.StatusBadRequest
	case sias.KindRateLimited:
		if errors.Is(err, sias.ErrAccountLocked) {
			return http.StatusForbidden
		}
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
