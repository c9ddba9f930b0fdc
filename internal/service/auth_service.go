package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
	"github.com/iliyamo/lang-test-booking/internal/utils"
)

// AuthConfig carries the token and hashing settings of AuthService.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// TokenPair is a freshly issued access token and raw refresh token.
type TokenPair struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// AuthService registers users and issues, rotates and revokes tokens.
// Refresh tokens are opaque random strings stored as SHA-256 hashes.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	cfg    AuthConfig
}

func NewAuthService(users UserStore, tokens TokenStore, cfg AuthConfig) *AuthService {
	return &AuthService{users: users, tokens: tokens, cfg: cfg}
}

// Register creates a USER account and signs it in.  An email that is
// already registered is a Conflict.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*model.User, TokenPair, error) {
	hash, err := utils.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, TokenPair{}, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, TokenPair{}, fmt.Errorf("%v: %w", err, repository.ErrConflict)
		}
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	log.WithField("user_id", u.ID).Info("user registered")
	return u, pair, nil
}

// Login verifies credentials and issues a new pair.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*model.User, TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh validates raw, revokes it and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*model.User, TokenPair, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	u, err := s.ownerOf(ctx, hash)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// RefreshAccess returns a new access token and keeps raw valid.
func (s *AuthService) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	u, err := s.ownerOf(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
	if err != nil {
		return utils.AccessToken{}, err
	}
	return utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
}

// Logout revokes raw when given; otherwise it revokes every refresh token of
// bearerUserID.  With neither it returns ErrMissingCredentials.
func (s *AuthService) Logout(ctx context.Context, bearerUserID, raw string) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}
		return s.tokens.RevokeByHash(ctx, hash)
	case bearerUserID != "":
		return s.tokens.RevokeAllForUser(ctx, bearerUserID)
	}
	return ErrMissingCredentials
}

// ParseAccess verifies an access token for the HTTP middleware.
func (s *AuthService) ParseAccess(raw string) (utils.Claims, error) {
	return utils.ParseAccessToken(s.cfg.JWTSecret, raw)
}

func (s *AuthService) ownerOf(ctx context.Context, hash string) (*model.User, error) {
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	return u, err
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, uuid.NewString(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, fmt.Errorf("save refresh: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
