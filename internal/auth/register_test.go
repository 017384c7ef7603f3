package auth

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/access"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/security"
)

type sqliteTxRunner struct {
	conn *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

func setupRegisterTest(t *testing.T) (*gorm.DB, RegisterService) {
	t.Helper()

	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'cashier',
  is_active BOOLEAN NOT NULL DEFAULT true,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create users table: %v", err)
	}

	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner:       sqliteTxRunner{conn: conn},
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return conn, svc
}

func adminIdentity() access.Identity {
	return access.Identity{ID: uuid.New(), Role: enums.RoleAdmin}
}

func TestRegisterCreatesCashierByDefault(t *testing.T) {
	conn, svc := setupRegisterTest(t)
	ctx := context.Background()

	dto, err := svc.Register(ctx, adminIdentity(), RegisterRequest{
		Username:        "  jdoe ",
		Email:           " John.Doe@SmartPOS.Test ",
		Password:        "password123",
		PasswordConfirm: "password123",
		FirstName:       " John ",
		LastName:        " Doe ",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.Username != "jdoe" {
		t.Fatalf("expected trimmed username, got %q", dto.Username)
	}
	if dto.Email != "john.doe@smartpos.test" {
		t.Fatalf("expected lowercased email, got %q", dto.Email)
	}
	if dto.Role != enums.RoleCashier {
		t.Fatalf("expected default cashier role, got %s", dto.Role)
	}
	if dto.FirstName != "John" || dto.LastName != "Doe" {
		t.Fatalf("expected trimmed names, got %q %q", dto.FirstName, dto.LastName)
	}
	if !dto.IsActive {
		t.Fatal("new accounts must start active")
	}

	var stored models.User
	if err := conn.First(&stored, "id = ?", dto.ID).Error; err != nil {
		t.Fatalf("load stored user: %v", err)
	}
	ok, err := security.VerifyPassword("password123", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify, ok=%v err=%v", ok, err)
	}
}

func TestRegisterHonorsExplicitRole(t *testing.T) {
	_, svc := setupRegisterTest(t)

	dto, err := svc.Register(context.Background(), adminIdentity(), RegisterRequest{
		Username:        "boss",
		Email:           "boss@smartpos.test",
		Password:        "password123",
		PasswordConfirm: "password123",
		Role:            enums.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.Role != enums.RoleAdmin {
		t.Fatalf("expected admin role, got %s", dto.Role)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	_, svc := setupRegisterTest(t)

	cashier := access.Identity{ID: uuid.New(), Role: enums.RoleCashier}
	_, err := svc.Register(context.Background(), cashier, RegisterRequest{
		Username:        "jdoe",
		Email:           "jdoe@smartpos.test",
		Password:        "password123",
		PasswordConfirm: "password123",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	_, svc := setupRegisterTest(t)
	ctx := context.Background()
	admin := adminIdentity()

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{
			name: "missing username",
			req:  RegisterRequest{Email: "a@smartpos.test", Password: "password123", PasswordConfirm: "password123"},
		},
		{
			name: "missing email",
			req:  RegisterRequest{Username: "jdoe", Password: "password123", PasswordConfirm: "password123"},
		},
		{
			name: "short password",
			req:  RegisterRequest{Username: "jdoe", Email: "a@smartpos.test", Password: "short", PasswordConfirm: "short"},
		},
		{
			name: "password mismatch",
			req:  RegisterRequest{Username: "jdoe", Email: "a@smartpos.test", Password: "password123", PasswordConfirm: "password124"},
		},
		{
			name: "invalid role",
			req:  RegisterRequest{Username: "jdoe", Email: "a@smartpos.test", Password: "password123", PasswordConfirm: "password123", Role: enums.Role("superuser")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, admin, tc.req)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	_, svc := setupRegisterTest(t)
	ctx := context.Background()
	admin := adminIdentity()

	base := RegisterRequest{
		Username:        "jdoe",
		Email:           "jdoe@smartpos.test",
		Password:        "password123",
		PasswordConfirm: "password123",
	}
	if _, err := svc.Register(ctx, admin, base); err != nil {
		t.Fatalf("seed register: %v", err)
	}

	dupUsername := base
	dupUsername.Email = "other@smartpos.test"
	_, err := svc.Register(ctx, admin, dupUsername)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}

	dupEmail := base
	dupEmail.Username = "other"
	_, err = svc.Register(ctx, admin, dupEmail)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}
