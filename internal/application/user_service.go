package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// UserStore persists administrator accounts. An empty passwordHash on update
// keeps the stored hash.
type UserStore interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// UserService manages administrator accounts. All operations require an
// admin principal.
type UserService struct {
	users       UserStore
	idGenerator func() string
	now         func() time.Time
	hashParams  Argon2idParams
	logger      *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, idGenerator func() string, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		idGenerator: idGenerator,
		now:         now,
		hashParams:  DefaultArgon2idParams,
	}
}

// WithLogger sets the base logger used when the context carries none.
func (s *UserService) WithLogger(logger *slog.Logger) *UserService {
	s.logger = logger
	return s
}

// CreateUser registers a new account.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "user_service", "create_user")
	defer func() {
		if err != nil {
			logger.Warn("user creation failed", "error_kind", ErrorKind(err))
			return
		}
		logger.Info("user created", "user_id", user.ID)
	}()

	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	displayName := strings.TrimSpace(params.DisplayName)

	vErr := &ValidationError{}
	if !isValidEmail(email) {
		vErr.add("email", "a valid email address is required")
	}
	if displayName == "" {
		vErr.add("displayName", "display name is required")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := CreatePasswordHash(params.Password, s.hashParams)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	return s.users.CreateUser(ctx, User{
		ID:          s.idGenerator(),
		Email:       email,
		DisplayName: displayName,
		IsAdmin:     params.IsAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, hash)
}

// GetUser fetches a single account.
func (s *UserService) GetUser(ctx context.Context, principal Principal, id string) (User, error) {
	if !principal.IsAdmin && principal.UserID != id {
		return User{}, ErrUnauthorized
	}
	return s.users.GetUser(ctx, id)
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	return s.users.ListUsers(ctx)
}

// UpdateUser applies a partial edit to an account. Admin and disabled flags
// can only be changed by an admin other than the target, so an admin cannot
// lock themselves out.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "user_service", "update_user", "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.Warn("user update failed", "error_kind", ErrorKind(err))
			return
		}
		logger.Info("user updated")
	}()

	if !params.Principal.IsAdmin && params.Principal.UserID != params.UserID {
		return User{}, ErrUnauthorized
	}

	current, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, err
	}

	vErr := &ValidationError{}
	if params.DisplayName != nil {
		name := strings.TrimSpace(*params.DisplayName)
		if name == "" {
			vErr.add("displayName", "display name is required")
		}
		current.DisplayName = name
	}
	if params.IsAdmin != nil || params.Disabled != nil {
		if !params.Principal.IsAdmin {
			return User{}, ErrUnauthorized
		}
		if params.Principal.UserID == params.UserID {
			vErr.add("isAdmin", "cannot change own admin or disabled flags")
		}
	}
	if params.IsAdmin != nil {
		current.IsAdmin = *params.IsAdmin
	}
	if params.Disabled != nil {
		current.Disabled = *params.Disabled
	}

	passwordHash := ""
	if params.Password != nil {
		if len(*params.Password) < 8 {
			vErr.add("password", "password must be at least 8 characters")
		} else {
			passwordHash, err = CreatePasswordHash(*params.Password, s.hashParams)
			if err != nil {
				return User{}, err
			}
		}
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	current.UpdatedAt = s.now()
	return s.users.UpdateUser(ctx, current, passwordHash)
}

// DeleteUser removes an account and its sessions. Self deletion is refused.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, id string) (err error) {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "user_service", "delete_user", "user_id", id)
	defer func() {
		if err != nil {
			logger.Warn("user deletion failed", "error_kind", ErrorKind(err))
			return
		}
		logger.Info("user deleted")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if principal.UserID == id {
		vErr := &ValidationError{}
		vErr.add("id", "cannot delete own account")
		return vErr
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}
