package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tasti/api/internal/config"
	"github.com/tasti/api/internal/user"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidCredentials is returned when username or password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountDisabled is returned when the account is deactivated.
var ErrAccountDisabled = errors.New("user account is disabled")

// ErrInvalidToken is returned for missing, expired or malformed refresh tokens.
var ErrInvalidToken = errors.New("invalid or expired refresh token")

// Tokens is an access/refresh pair. The refresh token travels in a cookie.
type Tokens struct {
	Access  string
	Refresh string
}

// RegisterParams holds the fields of a registration request.
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type credentialStore interface {
	GetCredentials(ctx context.Context, username string) (*credentials, error)
}

type userStore interface {
	Create(ctx context.Context, p user.CreateParams) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Service contains the business logic for password authentication.
type Service struct {
	creds credentialStore
	users userStore
	cfg   *config.Config
	now   func() time.Time
}

// NewService creates a new auth Service.
func NewService(repo *Repository, users *user.Service, cfg *config.Config) *Service {
	return newService(repo, users, cfg)
}

func newService(creds credentialStore, users userStore, cfg *config.Config) *Service {
	return &Service{creds: creds, users: users, cfg: cfg, now: time.Now}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates a new account and issues tokens for it.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*Tokens, *user.User, error) {
	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.users.Create(ctx, user.CreateParams{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: hash,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register: %w", err)
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}
	return tokens, u, nil
}

// Login checks username and password and issues tokens.
func (s *Service) Login(ctx context.Context, username, password string) (*Tokens, *user.User, error) {
	c, err := s.creds.GetCredentials(ctx, username)
	if errors.Is(err, errNoCredentials) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !c.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	u, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}
	return tokens, u, nil
}

// Refresh validates a refresh token and issues a new pair (the refresh token rotates).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, *user.User, error) {
	userID, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("refresh: %w", err)
	}
	if !u.IsActive {
		return nil, nil, ErrInvalidToken
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}
	return tokens, u, nil
}

func (s *Service) issueTokens(u *user.User) (*Tokens, error) {
	access, err := s.issueToken(u, tokenTypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issueToken(u, tokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Tokens{Access: access, Refresh: refresh}, nil
}

// issueToken creates a signed JWT of the given type for u.
func (s *Service) issueToken(u *user.User, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"typ":      tokenType,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// parseToken verifies raw and returns its subject if it has the wanted type.
func (s *Service) parseToken(raw, wantType string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	sub, _ := claims["sub"].(string)
	typ, _ := claims["typ"].(string)
	if sub == "" || typ != wantType {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}
