package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ridelink/internal/middleware"
	"ridelink/internal/service"
)

func newIdentityFixture() (*service.IdentityService, *MockUserRepository, *middleware.AuthManager) {
	userRepo := NewMockUserRepository()
	auth := middleware.NewAuthManager("test-secret", 24*time.Hour)
	identity := service.NewIdentityService(userRepo, NewMockPaymentGateway(), auth)
	return identity, userRepo, auth
}

func validParams() service.RegisterUserParams {
	return service.RegisterUserParams{
		Name:     "Pat",
		Email:    "pat@example.com",
		Phone:    "+15550001111",
		Password: "Str0ng!pass",
	}
}

func TestRegister_CreatesUserWithHashedPassword(t *testing.T) {
	ctx := context.Background()
	identity, userRepo, _ := newIdentityFixture()

	user, err := identity.Register(ctx, validParams())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated user id")
	}
	if user.PasswordHash == "Str0ng!pass" {
		t.Error("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Str0ng!pass")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if user.CustomerRef == "" {
		t.Error("expected billing customer reference")
	}

	if _, err := userRepo.GetByEmail(ctx, "pat@example.com"); err != nil {
		t.Errorf("user not persisted: %v", err)
	}
}

func TestRegister_ValidationFailures(t *testing.T) {
	ctx := context.Background()
	identity, _, _ := newIdentityFixture()

	cases := []struct {
		name   string
		mutate func(*service.RegisterUserParams)
		want   error
	}{
		{"phone without plus", func(p *service.RegisterUserParams) { p.Phone = "15550001111" }, service.ErrInvalidPhoneNumber},
		{"phone with letters", func(p *service.RegisterUserParams) { p.Phone = "+1555ABC1111" }, service.ErrInvalidPhoneNumber},
		{"email missing domain", func(p *service.RegisterUserParams) { p.Email = "pat@" }, service.ErrInvalidEmail},
		{"password too short", func(p *service.RegisterUserParams) { p.Password = "S0!a" }, service.ErrWeakPassword},
		{"password no digit", func(p *service.RegisterUserParams) { p.Password = "Strong!pass" }, service.ErrWeakPassword},
		{"password no upper", func(p *service.RegisterUserParams) { p.Password = "str0ng!pass" }, service.ErrWeakPassword},
		{"password no special", func(p *service.RegisterUserParams) { p.Password = "Str0ngpass" }, service.ErrWeakPassword},
	}

	for _, tc := range cases {
		params := validParams()
		tc.mutate(&params)
		if _, err := identity.Register(ctx, params); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestRegister_DuplicatePhoneOrEmail(t *testing.T) {
	ctx := context.Background()
	identity, _, _ := newIdentityFixture()

	if _, err := identity.Register(ctx, validParams()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	dupPhone := validParams()
	dupPhone.Email = "other@example.com"
	if _, err := identity.Register(ctx, dupPhone); !errors.Is(err, service.ErrAlreadyRegistered) {
		t.Errorf("duplicate phone: expected ErrAlreadyRegistered, got %v", err)
	}

	dupEmail := validParams()
	dupEmail.Phone = "+15550002222"
	if _, err := identity.Register(ctx, dupEmail); !errors.Is(err, service.ErrAlreadyRegistered) {
		t.Errorf("duplicate email: expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestLogin_RoundTripAndTokenParse(t *testing.T) {
	ctx := context.Background()
	identity, _, auth := newIdentityFixture()

	registered, err := identity.Register(ctx, validParams())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, user, err := identity.Login(ctx, "pat@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("login returned wrong user: %s", user.ID)
	}

	subject, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("token parse failed: %v", err)
	}
	if subject != registered.ID {
		t.Errorf("token subject %s, want %s", subject, registered.ID)
	}
}

func TestLogin_WrongCredentials(t *testing.T) {
	ctx := context.Background()
	identity, _, _ := newIdentityFixture()

	if _, err := identity.Register(ctx, validParams()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, _, err := identity.Login(ctx, "pat@example.com", "wrong-password"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := identity.Login(ctx, "nobody@example.com", "Str0ng!pass"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthManager_RejectsTamperedToken(t *testing.T) {
	auth := middleware.NewAuthManager("test-secret", time.Hour)
	other := middleware.NewAuthManager("other-secret", time.Hour)

	token, err := other.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Error("token signed with wrong secret accepted")
	}
}

func TestAuthManager_RejectsExpiredToken(t *testing.T) {
	auth := middleware.NewAuthManager("test-secret", -time.Minute)

	token, err := auth.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Error("expired token accepted")
	}
}
