package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"safescribe/notes-api/internal/auth"
	"safescribe/notes-api/internal/crypto"
	"safescribe/notes-api/internal/model"
	"safescribe/notes-api/internal/repository"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
	// bcrypt only reads the first 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrInvalidInput       = errors.New("invalid_input")
	ErrDuplicateIdentity  = errors.New("username_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// Service registers identities and exchanges credentials for session tokens.
type Service struct {
	users  repository.UserStore
	hasher *crypto.PasswordHasher
	tokens *auth.Manager
	now    func() time.Time
}

func NewService(users repository.UserStore, hasher *crypto.PasswordHasher, tokens *auth.Manager) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
	}
}

type RegisterInput struct {
	Username string
	Password string
	Role     string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	username := strings.TrimSpace(in.Username)
	if len([]rune(username)) < minUsernameLength {
		return model.User{}, fmt.Errorf("%w: username must have at least %d characters", ErrInvalidInput, minUsernameLength)
	}
	if len([]rune(in.Password)) < minPasswordLength {
		return model.User{}, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(in.Password) > maxPasswordBytes {
		return model.User{}, fmt.Errorf("%w: password must have at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, ErrDuplicateIdentity
		}
		return model.User{}, err
	}
	return user, nil
}

// Login verifies credentials and mints a token. Unknown usernames and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, auth.Token, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.CheckDummy(password)
			return model.User{}, auth.Token{}, ErrInvalidCredentials
		}
		return model.User{}, auth.Token{}, err
	}
	if err := s.hasher.Check(user.PasswordHash, password); err != nil {
		return model.User{}, auth.Token{}, ErrInvalidCredentials
	}
	token, err := s.tokens.Mint(user)
	if err != nil {
		return model.User{}, auth.Token{}, err
	}
	return user, token, nil
}

// EnsureAdmin creates the seed administrator unless the username is taken.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	_, err = s.Register(ctx, RegisterInput{Username: username, Password: password, Role: string(model.RoleAdmin)})
	if errors.Is(err, ErrDuplicateIdentity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
