package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lumenbank/apiserver/internal/metrics"
	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	CreateUser(ctx context.Context, user types.User) (types.User, error)
	UpdateUser(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates registration, login and profile use-cases.
type UserService struct {
	repo      UserRepository
	logger    log.Logger
	hashCost  int
	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(repo UserRepository, logger log.Logger) *UserService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &UserService{
		repo:     repo,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

// Registration is the input to Register.
type Registration struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// Register creates a user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, reg Registration) (types.User, error) {
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if reg.FirstName == "" || reg.LastName == "" || reg.Email == "" || reg.Password == "" {
		metrics.AuthAttempts.With("method", "register", "outcome", "invalid").Add(1)
		return types.User{}, ErrMissingFields
	}
	if reg.Password != reg.ConfirmPassword {
		metrics.AuthAttempts.With("method", "register", "outcome", "invalid").Add(1)
		return types.User{}, ErrPasswordMismatch
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if err != nil {
		return types.User{}, err
	}

	now := time.Now().UTC()
	user, err := s.repo.CreateUser(ctx, types.User{
		ID:           uuid.NewString(),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Email:        reg.Email,
		Phone:        reg.Phone,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.AuthAttempts.With("method", "register", "outcome", "conflict").Add(1)
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, err
	}

	metrics.AuthAttempts.With("method", "register", "outcome", "success").Add(1)
	s.logger.Log("msg", "user registered", "user", user.ID)
	return user, nil
}

// Authenticate verifies an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		metrics.AuthAttempts.With("method", "login", "outcome", "failure").Add(1)
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
		// Spend the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		metrics.AuthAttempts.With("method", "login", "outcome", "failure").Add(1)
		return types.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.AuthAttempts.With("method", "login", "outcome", "failure").Add(1)
		return types.User{}, ErrInvalidCredentials
	}

	metrics.AuthAttempts.With("method", "login", "outcome", "success").Add(1)
	return user, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lumen-dummy-password"), s.hashCost)
	})
	return s.dummyHash
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

// ProfileUpdate lists the profile fields a user may change. Nil fields
// are left as they are.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// UpdateProfile applies update to the user. The id, password and creation
// time are never changed here.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (types.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	set := func(dst *string, src *string, required bool) bool {
		if src == nil {
			return true
		}
		v := strings.TrimSpace(*src)
		if required && v == "" {
			return false
		}
		*dst = v
		return true
	}
	if !set(&user.FirstName, update.FirstName, true) ||
		!set(&user.LastName, update.LastName, true) ||
		!set(&user.Email, update.Email, true) ||
		!set(&user.Phone, update.Phone, false) {
		return types.User{}, ErrMissingFields
	}
	user.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.User{}, ErrEmailTaken
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}
	return updated, nil
}
