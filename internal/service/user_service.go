package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"apod-explorer/internal/domain"
	"apod-explorer/internal/repository"
)

// MinPasswordLength is the shortest password accepted on registration and update.
const MinPasswordLength = 6

// ProfileUpdate carries the optional fields of a profile change. Nil means "not supplied".
type ProfileUpdate struct {
	Name     *string
	Password *string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	users    repository.UserRepository
	validate *validator.Validate
	cost     int
}

func NewUserService(users repository.UserRepository) UserService {
	return newUserService(users, bcrypt.DefaultCost)
}

func newUserService(users repository.UserRepository, cost int) *userService {
	return &userService{
		users:    users,
		validate: validator.New(),
		cost:     cost,
	}
}

func (s *userService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	var msgs []string
	if err := s.validate.Var(email, "required,email"); err != nil {
		msgs = append(msgs, "enter a valid email address")
	}
	if !s.passwordLongEnough(password) {
		msgs = append(msgs, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(msgs) > 0 {
		return nil, newValidationError(msgs...)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error) {
	if update.Name == nil && update.Password == nil {
		return nil, newValidationError("no fields supplied for update")
	}

	var msgs []string
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		msgs = append(msgs, "name cannot be empty")
	}
	if update.Password != nil && !s.passwordLongEnough(*update.Password) {
		msgs = append(msgs, fmt.Sprintf("new password must be at least %d characters", MinPasswordLength))
	}
	if len(msgs) > 0 {
		return nil, newValidationError(msgs...)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	// the stored hash is only recomputed when a new password was supplied
	if update.Password != nil {
		hash, err := s.hash(*update.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// passwordLongEnough counts characters, not bytes.
func (s *userService) passwordLongEnough(password string) bool {
	return s.validate.Var(password, fmt.Sprintf("min=%d", MinPasswordLength)) == nil
}

func (s *userService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
