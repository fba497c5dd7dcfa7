package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// CredentialStore looks up stored credentials for login.
type CredentialStore interface {
	GetCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
}

// SessionStore persists issued sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSessionByToken(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string) error
}

// UserLookup resolves a user by id when validating sessions.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// AuthService handles login, session validation and logout.
type AuthService struct {
	credentials CredentialStore
	sessions    SessionStore
	users       UserLookup
	sessionTTL  time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService creates an AuthService. idGenerator supplies both session
// ids and tokens; now supplies the clock.
func NewAuthService(
	credentials CredentialStore,
	sessions SessionStore,
	users UserLookup,
	sessionTTL time.Duration,
	idGenerator func() string,
	now func() time.Time,
) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials: credentials,
		sessions:    sessions,
		users:       users,
		sessionTTL:  sessionTTL,
		idGenerator: idGenerator,
		now:         now,
	}
}

// WithLogger sets the base logger used when the context carries none.
func (s *AuthService) WithLogger(logger *slog.Logger) *AuthService {
	s.logger = logger
	return s
}

// Authenticate verifies the credentials and issues a new session.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "auth_service", "authenticate")
	defer func() {
		if err != nil {
			logger.Warn("authentication failed", "error_kind", ErrorKind(err))
			return
		}
		logger.Info("authentication succeeded", "user_id", result.User.ID)
	}()

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || params.Password == "" {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	creds, err := s.credentials.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, err
	}

	if err := VerifyPassword(creds.PasswordHash, params.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, err
	}

	// The disabled check runs after password verification so that probing
	// cannot distinguish disabled accounts from wrong passwords.
	if creds.Disabled {
		return AuthenticateResult{}, ErrAccountDisabled
	}

	now := s.now()
	session, err := s.sessions.CreateSession(ctx, Session{
		ID:          s.idGenerator(),
		UserID:      creds.User.ID,
		Token:       s.idGenerator(),
		Fingerprint: params.Fingerprint,
		ExpiresAt:   now.Add(s.sessionTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return AuthenticateResult{}, err
	}

	return AuthenticateResult{User: creds.User, Session: session}, nil
}

// ValidateSession resolves a bearer token into the acting principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (Principal, error) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}

	if session.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}
	if !s.now().Before(session.ExpiresAt) {
		return Principal{}, ErrSessionExpired
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if user.Disabled {
		return Principal{}, ErrAccountDisabled
	}

	return Principal{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

// RevokeSession invalidates the session behind the token. Revoking an
// unknown token is not an error.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "auth_service", "revoke_session")

	if strings.TrimSpace(token) == "" {
		return nil
	}

	err := s.sessions.RevokeSession(ctx, token)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	logger.Info("session revoked")
	return nil
}
