package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest admin password accepted by EnsureAdmin.
const MinPasswordLength = 8

var (
	// ErrNoSession is returned when the request carries no usable session.
	ErrNoSession = errors.New("no active session")

	// ErrSessionCheckFailed is returned when the session could not be verified.
	// Callers treat it exactly like ErrNoSession.
	ErrSessionCheckFailed = errors.New("session check failed")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidAdmin is returned by EnsureAdmin for an unusable email or password.
	ErrInvalidAdmin = errors.New("invalid admin account")
)

// dummyHash keeps the unknown-email path as slow as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Identity is the authenticated admin behind a request.
type Identity struct {
	AdminID   string
	Email     string
	SessionID string
	ExpiresAt time.Time
}

// Store is the persistence the Service needs; *Repository implements it.
type Store interface {
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	UpsertAdmin(ctx context.Context, email, passwordHash string) (*Admin, error)
	CreateSession(ctx context.Context, adminID string, expiresAt time.Time) (string, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	RevokeSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// Service is the panel's identity provider.
type Service struct {
	store      Store
	jwtSecret  []byte
	sessionTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewService creates a new auth Service.
func NewService(store Store, jwtSecret string, sessionTTL time.Duration, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
		log:        log,
		now:        time.Now,
	}
}

// Login verifies the credentials, opens a session and returns its signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Identity, error) {
	email = normalizeEmail(email)

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if errors.Is(err, errAdminNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.sessionTTL)
	sid, err := s.store.CreateSession(ctx, admin.ID, expiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	id := &Identity{AdminID: admin.ID, Email: admin.Email, SessionID: sid, ExpiresAt: expiresAt}
	token, err := s.issueToken(id)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("admin signed in", zap.String("admin_id", admin.ID), zap.String("session_id", sid))
	return token, id, nil
}

// CurrentSession resolves the identity behind token. It returns ErrNoSession
// when the token is missing, invalid, expired or revoked, and wraps
// ErrSessionCheckFailed when the session store could not be consulted.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return nil, ErrNoSession
	}

	sid, _ := claims["sid"].(string)
	sub, _ := claims["sub"].(string)
	if sid == "" || sub == "" {
		return nil, ErrNoSession
	}

	sess, err := s.store.GetSession(ctx, sid)
	if errors.Is(err, errSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCheckFailed, err)
	}
	if sess.AdminID != sub || !sess.Active(s.now()) {
		return nil, ErrNoSession
	}

	return &Identity{
		AdminID:   sess.AdminID,
		Email:     sess.AdminEmail,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// SignOut revokes the identity's session.
func (s *Service) SignOut(ctx context.Context, id *Identity) error {
	if id == nil {
		return ErrNoSession
	}
	if err := s.store.RevokeSession(ctx, id.SessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.log.Info("admin signed out", zap.String("admin_id", id.AdminID), zap.String("session_id", id.SessionID))
	return nil
}

// EnsureAdmin creates the admin account or resets its password.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*Admin, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q is not valid", ErrInvalidAdmin, email)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAdmin, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin, err := s.store.UpsertAdmin(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}
	s.log.Info("admin account ensured", zap.String("admin_id", admin.ID), zap.String("email", admin.Email))
	return admin, nil
}

// PurgeSessions removes sessions that expired or were revoked more than
// retention ago.
func (s *Service) PurgeSessions(ctx context.Context, retention time.Duration) error {
	n, err := s.store.PurgeExpiredSessions(ctx, s.now().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("purged stale sessions", zap.Int64("count", n))
	}
	return nil
}

// StartSessionCleanup purges stale sessions every interval until ctx is done.
func (s *Service) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.PurgeSessions(ctx, interval); err != nil {
					s.log.Warn("session cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

// issueToken creates a signed JWT bound to the session.
func (s *Service) issueToken(id *Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":   id.AdminID,
		"email": id.Email,
		"sid":   id.SessionID,
		"iat":   s.now().Unix(),
		"exp":   id.ExpiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *Service) parseToken(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrNoSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrNoSession
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
