package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// SessionRepository handles database operations for login sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// InsertSession creates a new session in the database
func (r *SessionRepository) InsertSession(ctx context.Context, session *models.SystemSession) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, token, expires_at, ip_address, user_agent, is_revoked, last_activity, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		constants.TableSession)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
		session.IsRevoked,
	)
	return err
}

// GetSession retrieves a session by its ID (from the JWT claim), nil if absent.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.SystemSession, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, token, expires_at, ip_address, user_agent, is_revoked, last_activity, created_date
		FROM %s
		WHERE id = ? LIMIT 1`,
		constants.TableSession)

	var s models.SystemSession
	var expiresRaw, lastActivityRaw, createdRaw []byte

	err := conn(ctx, r.db).QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&expiresRaw,
		&s.IPAddress,
		&s.UserAgent,
		&s.IsRevoked,
		&lastActivityRaw,
		&createdRaw,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	s.ExpiresAt = parseTime(expiresRaw)
	s.LastActivity = parseTime(lastActivityRaw)
	s.CreatedDate = parseTime(createdRaw)
	return &s, nil
}

// RevokeSession marks a session as revoked
func (r *SessionRepository) RevokeSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_revoked = 1 WHERE id = ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, sessionID)
	return err
}

// UpdateLastActivity updates the last activity timestamp
func (r *SessionRepository) UpdateLastActivity(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("UPDATE %s SET last_activity = NOW() WHERE id = ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, sessionID)
	return err
}

// DeleteExpiredSessions removes sessions past their expiry.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < NOW()", constants.TableSession)
	result, err := conn(ctx, r.db).ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
