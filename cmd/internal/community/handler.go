package community

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quad/cmd/internal/auth/session"
	"quad/cmd/internal/directory"
)

const defaultMaxBodyBytes = 64 << 10 // 64 KiB

// Handler wires the community/social HTTP surface to the store.
// Every route is credential-gated: author identity on likes and comments
// comes from verified session claims, never from the request body.
type Handler struct {
	log        *slog.Logger
	store      Store
	sessions   session.Issuer
	identities directory.Store

	maxBodyBytes int64
}

// NewHandler constructs a community Handler.
func NewHandler(log *slog.Logger, store Store, sessions session.Issuer, identities directory.Store) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("community: nil store")
	}
	if sessions == nil {
		return nil, errors.New("community: nil session issuer")
	}
	if identities == nil {
		return nil, errors.New("community: nil identity store")
	}
	return &Handler{
		log:          log,
		store:        store,
		sessions:     sessions,
		identities:   identities,
		maxBodyBytes: defaultMaxBodyBytes,
	}, nil
}

// Register wires community routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /communities", h.handleList)
	mux.HandleFunc("POST /communities/{id}/join", h.handleJoin)
	mux.HandleFunc("POST /communities/{id}/leave", h.handleLeave)
	mux.HandleFunc("POST /messages/{id}/like", h.handleLike)
	mux.HandleFunc("POST /messages/{id}/comments", h.handleCommentCreate)
	mux.HandleFunc("GET /messages/{id}/comments", h.handleCommentList)
}

// ---- handlers ----

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	out, err := h.store.ListCommunities(r.Context())
	if err != nil {
		h.log.Error("community.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if out == nil {
		out = []Community{}
	}
	writeJSON(w, http.StatusOK, listResponse{Communities: out})
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	h.handleMembership(w, r, h.store.Join, "community.join.fail")
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	h.handleMembership(w, r, h.store.Leave, "community.leave.fail")
}

func (h *Handler) handleMembership(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id string) (Community, error),
	failEvent string,
) {
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing community id")
		return
	}

	c, err := op(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "community not found")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid community id")
		default:
			h.log.Error(failEvent, "err", err, "community_id", id)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, communityResponse{Community: c})
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	messageID := strings.TrimSpace(r.PathValue("id"))
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing message id")
		return
	}

	state, err := h.store.ToggleLike(r.Context(), messageID, claims.StableID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid message id")
		default:
			h.log.Error("community.like.fail", "err", err, "message_id", messageID)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, likeResponse{Like: state})
}

func (h *Handler) handleCommentCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	messageID := strings.TrimSpace(r.PathValue("id"))
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing message id")
		return
	}

	var req commentCreateRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ident, err := h.identities.GetByStableID(r.Context(), claims.StableID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unknown identity")
		return
	}

	comment, err := h.store.AppendComment(r.Context(), AppendCommentInput{
		MessageID:   messageID,
		AuthorID:    claims.StableID,
		AuthorAlias: ident.DisplayAlias,
		Text:        req.Text,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyComment):
			writeError(w, http.StatusBadRequest, "empty_comment", "comment text is required")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid comment")
		default:
			h.log.Error("community.comment.fail", "err", err, "message_id", messageID)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, commentResponse{Comment: comment})
}

func (h *Handler) handleCommentList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	messageID := strings.TrimSpace(r.PathValue("id"))
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing message id")
		return
	}

	out, err := h.store.ListComments(r.Context(), messageID)
	if err != nil {
		h.log.Error("community.comment.list.fail", "err", err, "message_id", messageID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if out == nil {
		out = []Comment{}
	}
	writeJSON(w, http.StatusOK, commentListResponse{Comments: out})
}

// ---- auth ----

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

// ---- wire models ----

type listResponse struct {
	Communities []Community `json:"communities"`
}

type communityResponse struct {
	Community Community `json:"community"`
}

type likeResponse struct {
	Like LikeState `json:"like"`
}

type commentCreateRequest struct {
	Text string `json:"text"`
}

type commentResponse struct {
	Comment Comment `json:"comment"`
}

type commentListResponse struct {
	Comments []Comment `json:"comments"`
}
