package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

const (
	minPasswordLength = 5
	maxEmailLength    = 255
	maxNameLength     = 255
)

// UserService handles registration and profile management.
type UserService struct {
	users   UserStore
	params  auth.Params
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, params auth.Params, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, params: params, metrics: recorder, logger: logger}
}

// RegisterInput is the public registration payload.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register validates a public sign-up and creates the user.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	var v validator
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		v.add("password", fmt.Sprintf("ensure this field has at least %d characters", minPasswordLength))
	}
	if strings.TrimSpace(input.Email) == "" {
		v.add("email", msgRequired)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	return s.CreateUser(ctx, input.Email, input.Password, input.Name)
}

// CreateUser normalizes the email, hashes the password and persists the user.
// Unlike Register it puts no constraint on the password.
func (s *UserService) CreateUser(ctx context.Context, email, password, name string) (*model.User, error) {
	user, err := s.newUser(email, password, name)
	if err != nil {
		return nil, err
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, fieldError("email", "user with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncCreated(metrics.ResourceUser)
	s.logger.Info("user_created", slog.Int64("user_id", user.ID))
	return user, nil
}

// CreateSuperuser creates a user with staff and superuser flags set.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.newUser(email, password, "")
	if err != nil {
		return nil, err
	}
	user.IsStaff = true
	user.IsSuperuser = true

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, fieldError("email", "user with this email already exists")
		}
		return nil, fmt.Errorf("failed to create superuser: %w", err)
	}

	s.logger.Info("superuser_created", slog.Int64("user_id", user.ID))
	return user, nil
}

// CheckPassword reports whether candidate matches the user's stored hash.
func (s *UserService) CheckPassword(user *model.User, candidate string) bool {
	ok, err := auth.VerifyPassword(candidate, user.PasswordHash)
	return err == nil && ok
}

// Profile returns the user behind userID.
func (s *UserService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfileInput carries the fields a PATCH may change. Nil means unchanged.
type UpdateProfileInput struct {
	Email    *string
	Name     *string
	Password *string
}

// UpdateProfile merges the provided fields into the user's profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*model.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var v validator
	if input.Email != nil {
		email := model.NormalizeEmail(*input.Email)
		switch {
		case email == "":
			v.add("email", msgBlank)
		case len(email) > maxEmailLength:
			v.add("email", fmt.Sprintf("ensure this field has no more than %d characters", maxEmailLength))
		case !validEmail(email):
			v.add("email", msgInvalidEmail)
		default:
			user.Email = email
		}
	}
	if input.Name != nil {
		if utf8.RuneCountInString(*input.Name) > maxNameLength {
			v.add("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLength))
		}
		user.Name = *input.Name
	}
	if input.Password != nil {
		if utf8.RuneCountInString(*input.Password) < minPasswordLength {
			v.add("password", fmt.Sprintf("ensure this field has at least %d characters", minPasswordLength))
		} else {
			hash, err := auth.HashPasswordWithParams(*input.Password, s.params)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
			user.PasswordHash = hash
		}
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, fieldError("email", "user with this email already exists")
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.metrics.IncUpdated(metrics.ResourceUser)
	return user, nil
}

func (s *UserService) newUser(email, password, name string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, fieldError("email", msgRequired)
	}

	var v validator
	if len(email) > maxEmailLength {
		v.add("email", fmt.Sprintf("ensure this field has no more than %d characters", maxEmailLength))
	} else if !validEmail(email) {
		v.add("email", msgInvalidEmail)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		v.add("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLength))
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPasswordWithParams(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	}, nil
}

// validEmail accepts a bare addr-spec with a non-empty local part and a
// dotted domain. Display names and angle brackets are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return at > 0 && strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
