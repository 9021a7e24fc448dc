// Package auth authenticates the panel's admin and tracks their sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Admin is the account allowed into the panel.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is a server-side login record. A session is active while it is
// neither revoked nor expired.
type Session struct {
	ID         string
	AdminID    string
	AdminEmail string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

var (
	errAdminNotFound   = errors.New("admin not found")
	errSessionNotFound = errors.New("session not found")
)

// Repository handles admin and session persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetAdminByEmail returns the admin registered under email.
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	a := &Admin{}
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at
		 FROM admins WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return a, nil
}

// UpsertAdmin creates the admin or replaces their password hash.
func (r *Repository) UpsertAdmin(ctx context.Context, email, passwordHash string) (*Admin, error) {
	a := &Admin{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO admins (email, password_hash)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE
		   SET password_hash = EXCLUDED.password_hash, updated_at = NOW()
		 RETURNING id, email, password_hash, created_at`,
		email, passwordHash,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert admin: %w", err)
	}
	return a, nil
}

// CreateSession inserts a session for adminID and returns its id.
func (r *Repository) CreateSession(ctx context.Context, adminID string, expiresAt time.Time) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO sessions (admin_id, expires_at) VALUES ($1, $2) RETURNING id`,
		adminID, expiresAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// GetSession returns the session with its admin's email.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	s := &Session{}
	err := r.db.QueryRow(ctx,
		`SELECT s.id, s.admin_id, a.email, s.expires_at, s.revoked_at
		 FROM sessions s
		 JOIN admins a ON a.id = s.admin_id
		 WHERE s.id = $1`,
		id,
	).Scan(&s.ID, &s.AdminID, &s.AdminEmail, &s.ExpiresAt, &s.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// RevokeSession marks the session as signed out.
func (r *Repository) RevokeSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = NOW()
		 WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that can no longer authenticate.
func (r *Repository) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
