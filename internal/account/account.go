// Package account registers and authenticates quiz users.
//
// Passwords are stored as bcrypt hashes. The administrator flag is never
// derived from credentials at signup or login: it is set only through
// ProvisionAdmin, which the CLI calls during a controlled bootstrap step.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mlquiz/internal/model"
)

// Minimum credential lengths, in characters.
const (
	MinUsernameLen = 3
	MinPasswordLen = 6
)

// bcrypt rejects passwords longer than this many bytes.
const maxPasswordBytes = 72

// Repository is the persistence the service needs.
type Repository interface {
	CreateAccount(ctx context.Context, a model.Account) (model.Account, error)
	GetAccount(ctx context.Context, username string) (model.Account, error)
	AccountExists(ctx context.Context, username string) (bool, error)
}

// Service implements account creation and authentication.
type Service struct {
	repo          Repository
	adminUsername string
	cost          int
	dummyHash     []byte
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// New creates a Service. adminUsername is reserved: it cannot be claimed
// through CreateAccount.
func New(repo Repository, adminUsername string, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		adminUsername: Normalize(adminUsername),
		cost:          bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against for unknown users so a miss costs as much as a hit.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	return s
}

// Normalize trims and lowercases a username.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// AdminUsername returns the reserved administrator name.
func (s *Service) AdminUsername() string {
	return s.adminUsername
}

// CreateAccount registers a regular user.
func (s *Service) CreateAccount(ctx context.Context, username, password string) (model.Account, error) {
	username = Normalize(username)
	if err := validate(username, password); err != nil {
		return model.Account{}, err
	}
	if username == s.adminUsername {
		return model.Account{}, model.Invalid("UsernameReserved")
	}
	return s.create(ctx, username, password, false)
}

// ProvisionAdmin creates an administrator account. It is the only path
// that sets the administrator flag.
func (s *Service) ProvisionAdmin(ctx context.Context, username, password string) (model.Account, error) {
	username = Normalize(username)
	if err := validate(username, password); err != nil {
		return model.Account{}, err
	}
	a, err := s.create(ctx, username, password, true)
	if err != nil {
		return model.Account{}, err
	}
	slog.Info("provisioned administrator", "username", a.Username)
	return a, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// yield model.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (model.Account, error) {
	username = Normalize(username)
	if username == "" || password == "" {
		return model.Account{}, model.Invalid("CredentialsRequired")
	}

	a, err := s.repo.GetAccount(ctx, username)
	if errors.Is(err, model.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return model.Account{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return model.Account{}, model.ErrInvalidCredentials
	}
	return a, nil
}

// UsernameAvailable reports whether username can still be registered.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = Normalize(username)
	if username == "" {
		return false, model.Invalid("UsernameRequired")
	}
	if username == s.adminUsername {
		return false, nil
	}
	exists, err := s.repo.AccountExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return !exists, nil
}

func (s *Service) create(ctx context.Context, username, password string, admin bool) (model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	a, err := s.repo.CreateAccount(ctx, model.Account{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      admin,
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateUsername) {
			return model.Account{}, err
		}
		return model.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func validate(username, password string) error {
	if username == "" || password == "" {
		return model.Invalid("CredentialsRequired")
	}
	if utf8.RuneCountInString(username) < MinUsernameLen {
		return model.Invalid("UsernameTooShort")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return model.Invalid("PasswordTooShort")
	}
	if len(password) > maxPasswordBytes {
		return model.Invalid("PasswordTooLong")
	}
	return nil
}
