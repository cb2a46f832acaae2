package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service handles operator authentication. The desk has a single operator
// account configured at startup; refresh tokens are kept in memory since a
// restart invalidating sessions is acceptable for a desktop deployment.
type Service struct {
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	config          Config
	passwordHash    string
	account         string
	logger          zerolog.Logger

	mu            sync.Mutex
	refreshTokens map[string]refreshSession // sha256(token) -> session
}

type refreshSession struct {
	username  string
	expiresAt time.Time
}

// NewService creates a new authentication service. The account is attached
// to issued claims so handlers know which brokerage account the session
// operates.
func NewService(config Config, account string, logger zerolog.Logger) (*Service, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = 15 * time.Minute
	}
	if config.RefreshTokenDuration == 0 {
		config.RefreshTokenDuration = 7 * 24 * time.Hour
	}

	s := &Service{
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration, config.RefreshTokenDuration),
		passwordManager: NewPasswordManager(DefaultBcryptCost, config.MinPasswordLength),
		config:          config,
		account:         account,
		logger:          logger.With().Str("component", "AuthService").Logger(),
		refreshTokens:   make(map[string]refreshSession),
	}

	switch {
	case config.PasswordHash != "":
		s.passwordHash = config.PasswordHash
	case config.Password != "":
		if err := s.passwordManager.ValidatePasswordStrength(config.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		hash, err := s.passwordManager.HashPassword(config.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash operator password: %w", err)
		}
		s.passwordHash = hash
	default:
		return nil, fmt.Errorf("operator password or password hash is required")
	}

	return s, nil
}

// GetJWTManager returns the JWT manager for use in middleware.
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// Login authenticates the operator and issues a token pair.
func (s *Service) Login(req LoginRequest) (*TokenPair, error) {
	if req.Username != s.config.Username || !s.passwordManager.VerifyPassword(req.Password, s.passwordHash) {
		s.logger.Warn().Str("username", req.Username).Msg("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.jwtManager.GenerateTokenPair(OperatorClaims{
		Username: req.Username,
		Account:  s.account,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	s.storeRefreshToken(pair.RefreshToken, req.Username)
	s.logger.Info().Str("username", req.Username).Msg("Operator logged in")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// refresh token is revoked.
func (s *Service) Refresh(req RefreshRequest) (*TokenPair, error) {
	hashed := HashRefreshToken(req.RefreshToken)

	s.mu.Lock()
	session, ok := s.refreshTokens[hashed]
	if ok {
		delete(s.refreshTokens, hashed)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionRevoked
	}
	if time.Now().After(session.expiresAt) {
		return nil, ErrTokenExpired
	}

	pair, err := s.jwtManager.GenerateTokenPair(OperatorClaims{
		Username: session.username,
		Account:  s.account,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	s.storeRefreshToken(pair.RefreshToken, session.username)
	return pair, nil
}

// Logout revokes a refresh token.
func (s *Service) Logout(refreshToken string) {
	s.mu.Lock()
	delete(s.refreshTokens, HashRefreshToken(refreshToken))
	s.mu.Unlock()
}

func (s *Service) storeRefreshToken(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens[HashRefreshToken(token)] = refreshSession{
		username:  username,
		expiresAt: time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}

	// Drop expired sessions while we hold the lock.
	now := time.Now()
	for key, sess := range s.refreshTokens {
		if now.After(sess.expiresAt) {
			delete(s.refreshTokens, key)
		}
	}
}
