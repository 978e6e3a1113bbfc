// Package authapi exposes the passwordless login HTTP surface: one-time code
// request/verify and the authenticated profile endpoints.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quad/cmd/internal/auth/code"
	"quad/cmd/internal/auth/session"
	"quad/cmd/internal/directory"
)

// Handler wires the login and profile endpoints to the identity directory,
// the one-time code service, and the session issuer.
type Handler struct {
	log *slog.Logger
	cfg Config

	identities directory.Store
	codes      *code.Service
	sessions   session.Issuer
}

// NewHandler constructs an auth Handler.
func NewHandler(
	log *slog.Logger,
	cfg Config,
	identities directory.Store,
	codes *code.Service,
	sessions session.Issuer,
) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if identities == nil {
		return nil, errors.New("authapi: nil identity store")
	}
	if codes == nil {
		return nil, errors.New("authapi: nil code service")
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session issuer")
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = defaultEmailDomain
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		log:        log,
		cfg:        cfg,
		identities: identities,
		codes:      codes,
		sessions:   sessions,
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/code/request", h.handleCodeRequest)
	mux.HandleFunc("POST /auth/code/verify", h.handleCodeVerify)
	mux.HandleFunc("GET /me", h.handleMe)
	mux.HandleFunc("PATCH /me", h.handleMeUpdate)
}

// ---- handlers ----

func (h *Handler) handleCodeRequest(w http.ResponseWriter, r *http.Request) {
	var req codeRequestRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email, ok := h.institutionalEmail(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_email", "an institutional email address is required")
		return
	}

	now := time.Now().UTC()
	if err := h.codes.Issue(r.Context(), email, now); err != nil {
		switch {
		case errors.Is(err, code.ErrAlreadyPending):
			writeError(w, http.StatusConflict, "code_pending", "a login code was already sent; wait for it to expire")
		case errors.Is(err, code.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_email", "an institutional email address is required")
		case errors.Is(err, code.ErrDeliveryFailed):
			h.log.Error("auth.code.request.delivery.fail", "err", err)
			writeError(w, http.StatusBadGateway, "delivery_failed", "could not deliver the login code")
		default:
			h.log.Error("auth.code.request.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("auth.code.requested")
	writeJSON(w, http.StatusOK, codeRequestResponse{Status: "sent"})
}

func (h *Handler) handleCodeVerify(w http.ResponseWriter, r *http.Request) {
	var req codeVerifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email, ok := h.institutionalEmail(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_email", "an institutional email address is required")
		return
	}
	candidate := strings.TrimSpace(req.Code)
	if candidate == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	if err := h.codes.Verify(ctx, email, candidate, now); err != nil {
		// Absent, expired, and mismatched codes are all client errors; the
		// response does not say which, and none of them is a server fault.
		switch {
		case errors.Is(err, code.ErrNotFound), errors.Is(err, code.ErrMismatch), errors.Is(err, code.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_code", "invalid or expired code")
		default:
			h.log.Error("auth.code.verify.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	ident, err := h.identities.EnsureVerified(ctx, email, now)
	if err != nil {
		h.log.Error("auth.verify.ensure_identity.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	token, exp, err := h.sessions.Issue(ident.IdentityKey, ident.StableID, now)
	if err != nil {
		h.log.Error("auth.verify.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.session.issued", "stable_id", ident.StableID)
	writeJSON(w, http.StatusOK, codeVerifyResponse{
		User: toUserResponse(ident),
		Session: sessionResponse{
			Token:     token,
			ExpiresAt: exp,
		},
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ident, err := h.identities.GetByStableID(r.Context(), claims.StableID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown identity")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(ident)})
}

func (h *Handler) handleMeUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req meUpdateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.DisplayAlias == nil && req.GraduationYear == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	ident, err := h.identities.UpdateProfile(r.Context(), claims.StableID, directory.ProfileUpdate{
		DisplayAlias:   req.DisplayAlias,
		GraduationYear: req.GraduationYear,
		Now:            time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown identity")
		case errors.Is(err, directory.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid profile update")
		default:
			h.log.Error("auth.me.update.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(ident)})
}

// ---- helpers ----

// institutionalEmail normalizes and validates the address against the
// configured institutional domain (case-insensitive).
func (h *Handler) institutionalEmail(raw string) (string, bool) {
	email := directory.NormalizeEmail(raw)
	if email == "" {
		return "", false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	if email[at+1:] != strings.ToLower(h.cfg.EmailDomain) {
		return "", false
	}
	return email, true
}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.Claims{}, false
	}
	claims, err := h.sessions.Verify(token, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.Claims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
