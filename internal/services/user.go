package services

import (
	"context"
	"errors"
	"sync"

	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

// Client messages returned by UserService.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserExists         = "User already exists"
	MsgUserNotFound       = "User not found"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateStatus(ctx context.Context, id string, status types.Status) (types.User, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  types.User
}

// RegisterInput carries the fields of a self-service registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserService encapsulates account and session use-cases.
type UserService struct {
	repo   UserRepository
	codec  *auth.TokenCodec
	events *mq.Publisher
}

func NewUserService(repo UserRepository, codec *auth.TokenCodec, events *mq.Publisher) *UserService {
	if events == nil {
		events = mq.NewPublisher(nil)
	}
	return &UserService{repo: repo, codec: codec, events: events}
}

// Register creates an active account with the user role and signs a token
// for it. The admin role cannot be requested here.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	user, err := s.createAccount(ctx, in, types.RoleUser)
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.codec.Issue(user)
	if err != nil {
		return AuthResult{}, apperr.Internal(err)
	}
	return AuthResult{Token: token, User: user}, nil
}

// Provision creates an account with an explicit role without signing a
// token. It backs operator tooling such as the seed command and is never
// reachable over HTTP.
func (s *UserService) Provision(ctx context.Context, in RegisterInput, role types.Role) (types.User, error) {
	if _, err := types.ParseRole(string(role)); err != nil {
		return types.User{}, apperr.Validation("Invalid role value")
	}
	return s.createAccount(ctx, in, role)
}

func (s *UserService) createAccount(ctx context.Context, in RegisterInput, role types.Role) (types.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return types.User{}, apperr.Validation("Name, email and password are required")
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, apperr.Internal(err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         role,
		Status:       types.StatusActive,
		TokenVersion: 0,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.Wrap(apperr.KindValidation, MsgUserExists, err)
		}
		return types.User{}, apperr.Internal(err)
	}

	s.events.Publish(ctx, mq.ChannelIdentity, mq.EventUserRegistered, user.ID, mq.UserRegistered{
		UserID: user.ID,
		Email:  user.Email,
	})
	return user, nil
}

// Login verifies credentials and signs a token at the account's current
// token version. Unknown emails and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	if email == "" || password == "" {
		return AuthResult{}, apperr.Validation("Email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			auth.VerifyPassword(password, dummyHash())
			return AuthResult{}, apperr.Unauthenticated(MsgInvalidCredentials)
		}
		return AuthResult{}, apperr.Internal(err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return AuthResult{}, apperr.Unauthenticated(MsgInvalidCredentials)
	}

	if !user.IsActive() {
		return AuthResult{}, apperr.Unauthenticated(auth.MsgAccountInactive)
	}

	token, err := s.codec.Issue(user)
	if err != nil {
		return AuthResult{}, apperr.Internal(err)
	}
	return AuthResult{Token: token, User: user}, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Wrap(apperr.KindNotFound, MsgUserNotFound, err)
		}
		return types.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// UpdateStatus applies an admin-invoked status change. Deactivating an active
// account bumps its token version in the same write, logging it out of every
// session; reactivation does not revive old tokens.
func (s *UserService) UpdateStatus(ctx context.Context, actor types.User, id string, status types.Status) (types.User, error) {
	if _, err := types.ParseStatus(string(status)); err != nil {
		return types.User{}, apperr.Validation("Invalid status value")
	}

	user, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Wrap(apperr.KindNotFound, MsgUserNotFound, err)
		}
		return types.User{}, apperr.Internal(err)
	}

	s.events.Publish(ctx, mq.ChannelIdentity, mq.EventUserStatusChanged, actor.ID, mq.UserStatusChanged{
		UserID:       user.ID,
		Status:       string(user.Status),
		TokenVersion: user.TokenVersion,
	})

	return user, nil
}

var dummyHash = sync.OnceValue(func() string {
	hashed, err := auth.HashPassword("taskflow-timing-equalizer")
	if err != nil {
		return ""
	}
	return hashed
})
