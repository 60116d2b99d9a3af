package service

import (
	"context"
	"regexp"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ridelink/internal/domain"
	"ridelink/internal/gateway"
	"ridelink/internal/middleware"
	"ridelink/internal/repository"
)

var (
	phoneRegex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// RegisterUserParams contains everything needed to create an account.
type RegisterUserParams struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// IdentityService handles account registration and login.
type IdentityService struct {
	userRepo repository.UserRepository
	payments gateway.PaymentGateway
	auth     *middleware.AuthManager
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(
	userRepo repository.UserRepository,
	payments gateway.PaymentGateway,
	auth *middleware.AuthManager,
) *IdentityService {
	return &IdentityService{
		userRepo: userRepo,
		payments: payments,
		auth:     auth,
	}
}

// Register validates the params, creates a billing customer and stores
// the new account with a hashed password.
func (s *IdentityService) Register(ctx context.Context, params RegisterUserParams) (*domain.User, error) {
	if !phoneRegex.MatchString(params.Phone) {
		return nil, ErrInvalidPhoneNumber
	}
	if !emailRegex.MatchString(params.Email) {
		return nil, ErrInvalidEmail
	}
	if !passwordStrongEnough(params.Password) {
		return nil, ErrWeakPassword
	}

	if _, err := s.userRepo.GetByPhone(ctx, params.Phone); err == nil {
		return nil, ErrAlreadyRegistered
	} else if err != repository.ErrNotFound {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, params.Email); err == nil {
		return nil, ErrAlreadyRegistered
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	customerRef, err := s.payments.CreateCustomer(ctx, params.Name, params.Email, params.Phone)
	if err != nil {
		logrus.WithError(err).Warn("billing customer creation failed, registering without one")
		customerRef = ""
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         params.Name,
		Email:        params.Email,
		Phone:        params.Phone,
		PasswordHash: string(hash),
		CustomerRef:  customerRef,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"phone":   user.Phone,
	}).Info("user registered")

	return user, nil
}

// Login verifies the credentials and returns a signed token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// UserByID fetches a single account.
func (s *IdentityService) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UserByPhone resolves an account from a phone number.
func (s *IdentityService) UserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return s.userRepo.GetByPhone(ctx, phone)
}

func passwordStrongEnough(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSpecial
}
