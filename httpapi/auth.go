package httpapi

import (
	"errors"
	"net/http"
	"strings"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
	"github.com/MrEthical07/sias/middleware"
)

type userResponse struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	Name          string               `json:"name"`
	Role          access.Role          `json:"role"`
	Department    string               `json:"department,omitempty"`
	SecurityLevel access.SecurityLevel `json:"securityLevel"`
	MFAEnabled    bool                 `json:"mfaEnabled"`
	EmailVerified bool                 `json:"emailVerified"`
}

func newUserResponse(p *sias.Principal) *userResponse {
	if p == nil {
		return nil
	}
	return &userResponse{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Role:          p.Role,
		Department:    p.Department,
		SecurityLevel: p.SecurityLevel,
		MFAEnabled:    p.MFAEnabled,
		EmailVerified: p.EmailVerified,
	}
}

type signUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	CaptchaToken string `json:"captchaToken"`
}

// SignUp handles POST /api/auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.engine.SignUp(r.Context(), sias.SignUpInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		CaptchaToken: req.CaptchaToken,
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	h.cookies.SetSession(w, res.SessionToken, res.SessionExpiresAt)
	respondJSON(w, http.StatusCreated, map[string]any{
		"user":    newUserResponse(res.Principal),
		"message": "Account created. Check your email to verify your address.",
	})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /api/auth/signin. When the account has MFA enabled
// only the pending cookie is set and the response carries mfaRequired.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	res, err := h.engine.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	if res.MFARequired {
		h.cookies.SetPending(w, res.PendingToken, res.PendingExpiresAt)
		respondJSON(w, http.StatusOK, map[string]bool{"mfaRequired": true})
		return
	}

	h.cookies.SetSession(w, res.SessionToken, res.SessionExpiresAt)
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserResponse(res.Principal)})
}

type tokenRequest struct {
	Token string `json:"token"`
}

// ValidateMFA handles POST /api/auth/mfa/validate, the second step of a
// sign-in. The code may be a TOTP or a backup code.
func (h *Handler) ValidateMFA(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, http.StatusBadRequest, "Token required")
		return
	}

	pending, ok := middleware.PendingToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Session expired")
		return
	}

	res, err := h.engine.ValidateMFA(r.Context(), pending, req.Token)
	if err != nil {
		if errors.Is(err, sias.ErrPendingExpired) {
			h.cookies.ClearPending(w)
		}
		h.respondEngineError(w, r, err)
		return
	}

	h.cookies.ClearPending(w)
	h.cookies.SetSession(w, res.SessionToken, res.SessionExpiresAt)
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserResponse(res.Principal)})
}

// SignOut handles POST /api/auth/signout. It succeeds without a session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionToken(r); ok {
		if err := h.engine.SignOut(r.Context(), token); err != nil {
			h.respondEngineError(w, r, err)
			return
		}
	}
	h.cookies.ClearAll(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session handles GET /api/auth/session. An absent or dead session yields
// {"user": null}.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.SessionToken(r)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	p, err := h.engine.ValidateSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, sias.ErrUnauthenticated) {
			respondJSON(w, http.StatusOK, map[string]any{"user": nil})
			return
		}
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserResponse(p)})
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, http.StatusBadRequest, "Token is required")
		return
	}

	if err := h.engine.VerifyEmail(r.Context(), req.Token); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ForgotPassword handles POST /api/auth/password/forgot. The answer is the
// same whether or not the address belongs to an account.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

// ResetPassword handles POST /api/auth/password/reset.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Token and password are required")
		return
	}

	if err := h.engine.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	h.cookies.ClearAll(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MFASetup handles POST /api/auth/mfa/setup.
func (h *Handler) MFASetup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.engine.BeginMFASetup(r.Context(), principal(r).ID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"secret": setup.Secret,
		"qrCode": setup.QRCode,
	})
}

// MFAVerify handles POST /api/auth/mfa/verify, completing enrolment. The
// backup codes are returned once.
func (h *Handler) MFAVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, http.StatusBadRequest, "Token required")
		return
	}

	codes, err := h.engine.ConfirmMFASetup(r.Context(), principal(r).ID, req.Token)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"backupCodes": codes,
	})
}

// MFADisable handles POST /api/auth/mfa/disable.
func (h *Handler) MFADisable(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DisableMFA(r.Context(), principal(r).ID); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
