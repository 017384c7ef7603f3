package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/willy-peters/SmartPOS/pkg/auth"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "smartpos-test",
		ExpirationMinutes: 15,
	}
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessionMgr,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, sessionMgr
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	generated    int
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated++
	return s.refreshToken, nil
}

func TestServiceLogin(t *testing.T) {
	password := "cashier-secret"
	user := &models.User{
		ID:           uuid.New(),
		Username:     "jdoe",
		Email:        "jdoe@smartpos.test",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "John",
		LastName:     "Doe",
		Role:         enums.RoleCashier,
		IsActive:     true,
	}
	svc, sessionMgr := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Username: "jdoe",
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, claims.UserID)
	}
	if claims.Role != enums.RoleCashier {
		t.Fatalf("expected cashier role claim, got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected jti claim")
	}
	if resp.RefreshToken == "" || sessionMgr.generated != 1 {
		t.Fatalf("expected one refresh session, got token %q count %d", resp.RefreshToken, sessionMgr.generated)
	}
	if resp.User == nil || resp.User.Username != "jdoe" {
		t.Fatalf("expected user payload, got %+v", resp.User)
	}
	if user.LastLoginAt == nil {
		t.Fatal("expected last login to be recorded")
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	password := "cashier-secret"
	user := &models.User{
		ID:           uuid.New(),
		Username:     "jdoe",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleCashier,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user)
	ctx := context.Background()

	cases := []struct {
		name string
		req  LoginRequest
	}{
		{name: "wrong password", req: LoginRequest{Username: "jdoe", Password: "wrong"}},
		{name: "unknown user", req: LoginRequest{Username: "ghost", Password: password}},
		{name: "blank username", req: LoginRequest{Username: "   ", Password: password}},
		{name: "blank password", req: LoginRequest{Username: "jdoe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.req)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if typed.Message() != invalidCredentialsMessage {
				t.Fatalf("expected uniform message, got %q", typed.Message())
			}
		})
	}
}

func TestServiceLoginRejectsInactiveAccount(t *testing.T) {
	password := "cashier-secret"
	user := &models.User{
		ID:           uuid.New(),
		Username:     "jdoe",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleCashier,
		IsActive:     false,
	}
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "jdoe", Password: password})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for inactive account, got %v", err)
	}
	if typed.Message() != invalidCredentialsMessage {
		t.Fatalf("inactive accounts must not be distinguishable, got %q", typed.Message())
	}
}
