package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/infrastructure/persistence"
	"github.com/assetflow/backend/pkg/auth"
	"github.com/assetflow/backend/pkg/errors"
)

// AuthService handles authentication, session management, and password
// operations against the organization directory.
type AuthService struct {
	directory *persistence.DirectoryRepository
	sessions  *persistence.SessionRepository

	cron *cron.Cron
}

// NewAuthService creates a new AuthService
func NewAuthService(directory *persistence.DirectoryRepository, sessions *persistence.SessionRepository) *AuthService {
	return &AuthService{directory: directory, sessions: sessions}
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Token     string
	User      auth.UserSession
	ExpiresAt time.Time
}

// Login authenticates a user and creates a session backing the issued token.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	user, err := s.directory.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user == nil {
		log.Printf("⚠️ Login failed for %s: user not found", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}
	if !user.IsActive {
		log.Printf("⚠️ Login failed for %s: user deactivated", email)
		return nil, errors.NewUnauthorizedError("Account is deactivated")
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		log.Printf("⚠️ Login failed for %s: invalid password", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}

	session := auth.UserSession{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		DepartmentID: user.DepartmentID,
		RoleID:       user.RoleID,
		IsAdmin:      user.IsAdmin,
	}

	token, err := auth.GenerateToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	claims, err := auth.DecodeToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode issued token: %w", err)
	}
	expiresAt := claims.ExpiresAt.Time

	if err := s.sessions.InsertSession(ctx, &models.SystemSession{
		ID:        claims.RegisteredClaims.ID,
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		IPAddress: ip,
		UserAgent: userAgent,
		IsRevoked: false,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	log.Printf("✅ User logged in: %s (%s)", user.Name, user.ID)
	return &LoginResult{Token: token, User: session, ExpiresAt: expiresAt}, nil
}

// ValidateSession checks a token's signature and its backing session row.
func (s *AuthService) ValidateSession(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, claims.RegisteredClaims.ID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if session == nil {
		return nil, errors.NewUnauthorizedError("Session not found")
	}
	if session.IsRevoked {
		return nil, errors.NewUnauthorizedError("Session has been revoked")
	}
	return claims, nil
}

// TouchSession updates the last activity timestamp for a session.
// Fire and forget; activity timestamps are not critical.
func (s *AuthService) TouchSession(sessionID string) {
	go func() {
		_ = s.sessions.UpdateLastActivity(context.Background(), sessionID)
	}()
}

// Logout revokes the token's session.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := auth.DecodeToken(tokenString)
	if err != nil {
		return errors.NewValidationError("token", "Invalid token")
	}

	if err := s.sessions.RevokeSession(ctx, claims.RegisteredClaims.ID); err != nil {
		return err
	}
	log.Printf("👋 User logged out (session %s)", claims.RegisteredClaims.ID)
	return nil
}

// StartSessionCleanup schedules hourly removal of expired session rows.
// Call Stop on shutdown.
func (s *AuthService) StartSessionCleanup() error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() {
		n, err := s.sessions.DeleteExpiredSessions(context.Background())
		if err != nil {
			log.Printf("⚠️ Session cleanup failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("🔐 Purged %d expired session(s)", n)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule session cleanup: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// StopSessionCleanup halts the cleanup schedule.
func (s *AuthService) StopSessionCleanup() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}

// GetUserByID loads a directory user as a service-layer session object.
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*models.UserSession, error) {
	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", userID)
	}
	return &models.UserSession{
		ID:           user.ID,
		Name:         user.Name,
		Email:        &user.Email,
		DepartmentID: user.DepartmentID,
		RoleID:       user.RoleID,
		IsAdmin:      user.IsAdmin,
	}, nil
}
