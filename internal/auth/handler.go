package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/tasti/api/internal/config"
	"github.com/tasti/api/internal/response"
	"github.com/tasti/api/internal/user"
)

// RefreshCookieName is the httpOnly cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

const minPasswordLength = 8

// usernameRegex allows letters, digits and @/./+/-/_ up to 150 characters.
var usernameRegex = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
	cfg *config.Config
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

type registerRequest struct {
	Username  string `json:"username"   example:"tasti"`
	Email     string `json:"email"      example:"cook@tasti.app"`
	Password  string `json:"password"   example:"correct horse battery"`
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name"  example:"Lovelace"`
}

type loginRequest struct {
	Username string `json:"username" example:"tasti"`
	Password string `json:"password" example:"correct horse battery"`
}

type sessionData struct {
	Message string     `json:"message,omitempty" example:"User logged in successfully"`
	Access  string     `json:"access"            example:"eyJhbGci..."`
	User    *user.User `json:"user"`
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create an account. Returns an access token and sets the refresh token cookie.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Registration details"
//	@Success		201		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := response.Decode(w, r, &req, false); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if !usernameRegex.MatchString(req.Username) {
		response.BadRequest(w, "username may contain only letters, digits and @/./+/-/_ (max 150)")
		return
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			response.BadRequest(w, "invalid email address")
			return
		}
	}
	if len(req.Password) < minPasswordLength {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}

	tokens, u, err := h.svc.Register(r.Context(), RegisterParams{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, user.ErrAlreadyExists) {
		response.Conflict(w, "username already taken")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	h.setRefreshCookie(w, tokens.Refresh)
	response.Created(w, sessionData{Message: "User registered successfully", Access: tokens.Access, User: u})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange username and password for an access token. Sets the refresh token cookie.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := response.Decode(w, r, &req, false); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "must include username and password")
		return
	}

	tokens, u, err := h.svc.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.Unauthorized(w, "invalid credentials")
		return
	case errors.Is(err, ErrAccountDisabled):
		response.Unauthorized(w, "user account is disabled")
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	h.setRefreshCookie(w, tokens.Refresh)
	response.OK(w, sessionData{Message: "User logged in successfully", Access: tokens.Access, User: u})
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Clear the refresh token cookie.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshCookie(w)
	response.OK(w, map[string]string{"message": "Logout successful"})
}

// Refresh godoc
//
//	@Summary		Refresh access token
//	@Description	Issue a new access token from the refresh token cookie and rotate the cookie.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=sessionData}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/token/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		response.Unauthorized(w, "refresh token not found in cookies")
		return
	}

	tokens, u, err := h.svc.Refresh(r.Context(), cookie.Value)
	if errors.Is(err, ErrInvalidToken) {
		h.clearRefreshCookie(w)
		response.Unauthorized(w, "invalid or expired refresh token")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	h.setRefreshCookie(w, tokens.Refresh)
	response.OK(w, sessionData{Access: tokens.Access, User: u})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}
