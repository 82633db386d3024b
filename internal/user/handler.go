package user

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tasti/api/internal/middleware"
	"github.com/tasti/api/internal/response"
)

// Handler serves the account endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts /me (authenticated) and the public profile lookup.
func (h *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(requireAuth).Get("/me", h.GetMe)
	r.Get("/{username}", h.GetProfile)
	return r
}

// profile is the public view of a user: no email, no names.
type profile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	DateJoined time.Time `json:"date_joined"`
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetByID(r.Context(), id)
	switch {
	case h.svc.IsNotFound(err):
		response.NotFound(w, "user not found")
	case err != nil:
		response.InternalError(w)
	case !u.IsActive:
		response.Unauthorized(w, "user account is disabled")
	default:
		response.OK(w, u)
	}
}

// GetProfile godoc
//
//	@Summary		Get public profile
//	@Description	Returns the public profile of an active user.
//	@Tags			users
//	@Produce		json
//	@Param			username	path		string	true	"Username"
//	@Success		200			{object}	response.Envelope{data=profile}
//	@Failure		404			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/users/{username} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if h.svc.IsNotFound(err) || (err == nil && !u.IsActive) {
		response.NotFound(w, "user not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, profile{ID: u.ID, Username: u.Username, DateJoined: u.DateJoined})
}
