package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/itadmin/internal/testfixtures"
)

type stubCredentialStore struct {
	creds map[string]UserCredentials
}

func (s *stubCredentialStore) GetCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	if creds, ok := s.creds[email]; ok {
		return creds, nil
	}
	return UserCredentials{}, ErrNotFound
}

type stubSessionStore struct {
	sessions map[string]Session
	created  int
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[string]Session)}
}

func (s *stubSessionStore) CreateSession(_ context.Context, session Session) (Session, error) {
	s.sessions[session.Token] = session
	s.created++
	return session, nil
}

func (s *stubSessionStore) GetSessionByToken(_ context.Context, token string) (Session, error) {
	if session, ok := s.sessions[token]; ok {
		return session, nil
	}
	return Session{}, ErrNotFound
}

func (s *stubSessionStore) RevokeSession(_ context.Context, token string) error {
	session, ok := s.sessions[token]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	session.RevokedAt = &now
	s.sessions[token] = session
	return nil
}

type stubUserLookup struct {
	users map[string]User
}

func (s *stubUserLookup) GetUser(_ context.Context, id string) (User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return User{}, ErrNotFound
}

func authFixture(t *testing.T, disabled bool) (*AuthService, *stubSessionStore, *testfixtures.Clock) {
	t.Helper()

	hash, err := CreatePasswordHash("correct-horse", DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := User{ID: "u1", Email: "admin@example.com", DisplayName: "Admin", IsAdmin: true, Disabled: disabled}
	creds := &stubCredentialStore{creds: map[string]UserCredentials{
		"admin@example.com": {User: user, PasswordHash: hash, Disabled: disabled},
	}}
	sessions := newStubSessionStore()
	users := &stubUserLookup{users: map[string]User{"u1": user}}
	clock := testfixtures.NewClock(time.Time{})

	svc := NewAuthService(creds, sessions, users, time.Hour, sequentialIDs(), clock.NowFunc())
	return svc, sessions, clock
}

func TestAuthenticateSuccess(t *testing.T) {
	t.Parallel()

	svc, sessions, clock := authFixture(t, false)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    " Admin@Example.com ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.User.ID != "u1" {
		t.Fatalf("unexpected user: %+v", result.User)
	}
	if result.Session.Token == "" {
		t.Fatal("expected a session token")
	}
	if !result.Session.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", result.Session.ExpiresAt)
	}
	if sessions.created != 1 {
		t.Fatalf("expected one stored session, got %d", sessions.created)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc, _, _ := authFixture(t, false)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "admin@example.com", password: "wrong"},
		{name: "unknown email", email: "nobody@example.com", password: "correct-horse"},
		{name: "empty email", email: "", password: "correct-horse"},
		{name: "empty password", email: "admin@example.com", password: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: tc.email, Password: tc.password})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthenticateRejectsDisabledAccount(t *testing.T) {
	t.Parallel()

	svc, _, _ := authFixture(t, true)

	_, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "admin@example.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestValidateSessionLifecycle(t *testing.T) {
	t.Parallel()

	svc, _, clock := authFixture(t, false)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "admin@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := result.Session.Token

	principal, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal.UserID != "u1" || !principal.IsAdmin {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	// Past expiry the session stops validating.
	clock.Advance(2 * time.Hour)
	if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	clock.Advance(-2 * time.Hour)
	if err := svc.RevokeSession(context.Background(), token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestValidateSessionUnknownToken(t *testing.T) {
	t.Parallel()

	svc, _, _ := authFixture(t, false)

	if _, err := svc.ValidateSession(context.Background(), "missing"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), "  "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRevokeSessionUnknownTokenIsNoop(t *testing.T) {
	t.Parallel()

	svc, _, _ := authFixture(t, false)
	if err := svc.RevokeSession(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
