package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"colabtrack/internal/auth"
	"colabtrack/internal/model"
	"colabtrack/internal/repository"
)

// TokenIssuer is the part of the token service the auth workflow needs.
type TokenIssuer interface {
	Generate(id auth.Identity) (string, error)
	Refresh(oldToken string) (string, auth.Identity, error)
}

// UserView is a user as shown to clients. It never carries the password hash.
type UserView struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewUserView(u *model.User) UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
	}
}

type AuthResult struct {
	Token string
	User  UserView
}

type AuthService struct {
	users      repository.UserRepositoryInterface
	tokens     TokenIssuer
	bcryptCost int
	log        *slog.Logger
	now        func() time.Time
}

func NewAuthService(users repository.UserRepositoryInterface, tokens TokenIssuer, bcryptCost int, log *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an enabled CONTRIBUTOR account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, repository.ErrDuplicateEmail
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(name),
		Email:          email,
		HashedPassword: hash,
		Role:           model.RoleContributor,
		Enabled:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", user.ID)

	return s.issue(user)
}

// Login checks credentials. Unknown email, wrong password and a disabled account all
// yield ErrAuthenticationFailed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !auth.VerifyPassword(password, user.HashedPassword) {
		s.log.Debug("login rejected: password mismatch", "user_id", user.ID)
		return nil, ErrAuthenticationFailed
	}
	if !user.Enabled {
		s.log.Debug("login rejected: account disabled", "user_id", user.ID)
		return nil, ErrAuthenticationFailed
	}

	return s.issue(user)
}

// RefreshToken exchanges a presented token, possibly expired, for a fresh one.
func (s *AuthService) RefreshToken(ctx context.Context, presented string) (*AuthResult, error) {
	token, id, err := s.tokens.Refresh(auth.StripBearer(presented))
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAuthenticationFailed
	}

	// role changed since the old token was issued
	if id.Role != user.Role {
		return s.issue(user)
	}
	return &AuthResult{Token: token, User: NewUserView(user)}, nil
}

// hashPassword rejects passwords bcrypt cannot hash (over 72 bytes) as invalid input.
func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrInvalidInput
	}
	return hash, err
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: NewUserView(user)}, nil
}

// Profile returns the user behind id.
func (s *AuthService) Profile(ctx context.Context, id uuid.UUID) (UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	return NewUserView(user), nil
}

// UpdateProfile changes a user's own name and/or password. Nil fields are left as is.
func (s *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, name, password *string) (UserView, error) {
	return s.mutate(ctx, id, func(u *model.User) error {
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			if trimmed == "" {
				return ErrInvalidInput
			}
			u.Name = trimmed
		}
		if password != nil {
			hash, err := s.hashPassword(*password)
			if err != nil {
				return err
			}
			u.HashedPassword = hash
		}
		return nil
	})
}

func (s *AuthService) ChangeRole(ctx context.Context, id uuid.UUID, role model.Role) (UserView, error) {
	if !role.Valid() {
		return UserView{}, ErrInvalidInput
	}
	return s.mutate(ctx, id, func(u *model.User) error {
		u.Role = role
		return nil
	})
}

// SetEnabled soft-disables or re-enables an account; users are never hard-deleted.
func (s *AuthService) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) (UserView, error) {
	return s.mutate(ctx, id, func(u *model.User) error {
		u.Enabled = enabled
		return nil
	})
}

func (s *AuthService) mutate(ctx context.Context, id uuid.UUID, apply func(*model.User) error) (UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	if err := apply(user); err != nil {
		return UserView{}, err
	}
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return UserView{}, err
	}
	s.log.Info("user updated", "user_id", user.ID, "role", user.Role, "enabled", user.Enabled)
	return NewUserView(user), nil
}
