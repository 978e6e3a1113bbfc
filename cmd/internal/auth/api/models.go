package authapi

import (
	"time"

	"quad/cmd/internal/directory"
)

type codeRequestRequest struct {
	Email string `json:"email"`
}

type codeRequestResponse struct {
	Status string `json:"status"`
}

type codeVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type userResponse struct {
	StableID       string    `json:"stable_id"`
	DisplayAlias   string    `json:"display_alias"`
	Verified       bool      `json:"verified"`
	GraduationYear *int      `json:"graduation_year,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type codeVerifyResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type meUpdateRequest struct {
	DisplayAlias   *string `json:"display_alias"`
	GraduationYear *int    `json:"graduation_year"`
}

// toUserResponse never exposes the identity key: the institutional email
// stays server-side, only the stable id and alias are public.
func toUserResponse(id directory.Identity) userResponse {
	return userResponse{
		StableID:       id.StableID,
		DisplayAlias:   id.DisplayAlias,
		Verified:       id.Verified,
		GraduationYear: id.GraduationYear,
		CreatedAt:      id.CreatedAt,
	}
}
