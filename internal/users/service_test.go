package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := setupUserTestDB(t)
	svc, err := NewService(NewRepository(conn), sqliteTxRunner{conn: conn}, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func identityFor(user *models.User) access.Identity {
	return access.Identity{ID: user.ID, Role: user.Role}
}

func TestServiceListAdminOnly(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	admin := seedUser(t, conn, "root", enums.RoleAdmin, true, now)
	cashier := seedUser(t, conn, "alice", enums.RoleCashier, true, now.Add(-time.Minute))

	_, err := svc.List(ctx, identityFor(cashier), ListInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for cashier, got %v", err)
	}

	result, err := svc.List(ctx, identityFor(admin), ListInput{})
	if err != nil {
		t.Fatalf("list as admin: %v", err)
	}
	if len(result.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(result.Users))
	}
}

func TestServiceGetAndMe(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	admin := seedUser(t, conn, "root", enums.RoleAdmin, true, now)
	alice := seedUser(t, conn, "alice", enums.RoleCashier, true, now)
	bob := seedUser(t, conn, "bob", enums.RoleCashier, true, now)

	own, err := svc.Get(ctx, identityFor(alice), alice.ID)
	if err != nil {
		t.Fatalf("self get: %v", err)
	}
	if own.Username != "alice" {
		t.Fatalf("expected alice, got %q", own.Username)
	}

	_, err = svc.Get(ctx, identityFor(bob), alice.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for foreign profile, got %v", err)
	}

	other, err := svc.Get(ctx, identityFor(admin), alice.ID)
	if err != nil || other.ID != alice.ID {
		t.Fatalf("admin get failed: %v", err)
	}

	_, err = svc.Get(ctx, identityFor(admin), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	me, err := svc.Me(ctx, identityFor(bob))
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ID != bob.ID {
		t.Fatalf("expected own profile, got %s", me.ID)
	}
}

func TestServiceUpdateProfileFields(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	alice := seedUser(t, conn, "alice", enums.RoleCashier, true, now)

	first := "  Alice "
	email := " Alice.Ray@SmartPOS.Test "
	updated, err := svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{
		FirstName: &first,
		Email:     &email,
	})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if updated.FirstName != "Alice" {
		t.Fatalf("expected trimmed first name, got %q", updated.FirstName)
	}
	if updated.Email != "alice.ray@smartpos.test" {
		t.Fatalf("expected normalized email, got %q", updated.Email)
	}

	var row models.User
	if err := conn.First(&row, "id = ?", alice.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.Email != "alice.ray@smartpos.test" {
		t.Fatalf("update not persisted, got %q", row.Email)
	}
}

func TestServiceUpdatePrivilegedFields(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	admin := seedUser(t, conn, "root", enums.RoleAdmin, true, now)
	alice := seedUser(t, conn, "alice", enums.RoleCashier, true, now)

	adminRole := enums.RoleAdmin
	_, err := svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Role: &adminRole})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden role change, got %v", err)
	}

	inactive := false
	_, err = svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{IsActive: &inactive})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden active change, got %v", err)
	}

	promoted, err := svc.Update(ctx, identityFor(admin), alice.ID, UpdateUserInput{Role: &adminRole})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != enums.RoleAdmin {
		t.Fatalf("expected admin role, got %s", promoted.Role)
	}

	cashierRole := enums.RoleCashier
	_, err = svc.Update(ctx, identityFor(admin), admin.ID, UpdateUserInput{Role: &cashierRole})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected self-demote rejection, got %v", err)
	}
	if !strings.Contains(typed.Message(), "demote") {
		t.Fatalf("unexpected message %q", typed.Message())
	}

	_, err = svc.Update(ctx, identityFor(admin), admin.ID, UpdateUserInput{IsActive: &inactive})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected self-deactivate rejection, got %v", err)
	}

	deactivated, err := svc.Update(ctx, identityFor(admin), alice.ID, UpdateUserInput{IsActive: &inactive})
	if err != nil {
		t.Fatalf("deactivate cashier: %v", err)
	}
	if deactivated.IsActive {
		t.Fatal("expected inactive account")
	}
}

func TestServiceUpdateConflictsAndValidation(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	alice := seedUser(t, conn, "alice", enums.RoleCashier, true, now)
	seedUser(t, conn, "bob", enums.RoleCashier, true, now)

	taken := "bob"
	_, err := svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Username: &taken})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected username conflict, got %v", err)
	}

	takenEmail := "bob@smartpos.test"
	_, err = svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Email: &takenEmail})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected email conflict, got %v", err)
	}

	empty := "   "
	_, err = svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Username: &empty})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	short := "abc"
	_, err = svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Password: &short})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected password length rejection, got %v", err)
	}

	fresh := "hunter2hunter2"
	_, err = svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Password: &fresh})
	if err != nil {
		t.Fatalf("password update: %v", err)
	}
	var row models.User
	if err := conn.First(&row, "id = ?", alice.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	ok, err := security.VerifyPassword(fresh, row.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}

	// Resubmitting the current username is not a conflict.
	same := "alice"
	if _, err := svc.Update(ctx, identityFor(alice), alice.ID, UpdateUserInput{Username: &same}); err != nil {
		t.Fatalf("own username resubmit: %v", err)
	}
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	admin := seedUser(t, conn, "root", enums.RoleAdmin, true, now)
	alice := seedUser(t, conn, "alice", enums.RoleCashier, true, now)
	bob := seedUser(t, conn, "bob", enums.RoleCashier, true, now)

	sale := &models.Sale{
		ID:            uuid.New(),
		TransactionID: "TXN-DEADBEEF0001",
		SaleDate:      now,
		CashierID:     bob.ID,
		TotalAmount:   decimal.RequireFromString("5.00"),
	}
	if err := conn.Create(sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	if err := svc.Delete(ctx, identityFor(alice), bob.ID); err == nil {
		t.Fatal("expected cashier delete to be forbidden")
	}

	err := svc.Delete(ctx, identityFor(admin), admin.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected self-delete rejection, got %v", err)
	}

	err = svc.Delete(ctx, identityFor(admin), bob.ID)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for cashier with sales, got %v", err)
	}

	if err := svc.Delete(ctx, identityFor(admin), alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var count int64
	if err := conn.Model(&models.User{}).Where("id = ?", alice.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("expected user row removed")
	}

	err = svc.Delete(ctx, identityFor(admin), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
