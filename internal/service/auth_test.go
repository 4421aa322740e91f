package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/validate"
)

const testSecret = "test-secret-key-for-unit-tests"

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestService(t *testing.T, store AdminStore) *AuthService {
	t.Helper()
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	tokens, err := NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(store, hasher, tokens, logger)
}

func createAdmin(t *testing.T, svc *AuthService, email, password string, role model.Role) *model.Admin {
	t.Helper()
	admin, err := svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: password,
		Name:     "Test Admin",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return admin
}

func TestLoginSuccess(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "editor@example.com", "correct-horse", model.RoleEditor)

	res, err := svc.Login(context.Background(), "Editor@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if res.Admin.ID != admin.ID {
		t.Errorf("admin id = %d, want %d", res.Admin.ID, admin.ID)
	}

	ident, err := svc.Tokens().Verify(res.Token)
	if err != nil {
		t.Fatalf("Verify issued token: %v", err)
	}
	if ident.ID != admin.ID || ident.Role != model.RoleEditor || ident.Email != "editor@example.com" {
		t.Errorf("unexpected identity: %+v", ident)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	cases := []struct{ email, password string }{
		{"", "secret123"},
		{"a@example.com", ""},
		{"   ", "secret123"},
	}
	for _, c := range cases {
		if _, err := svc.Login(context.Background(), c.email, c.password); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("Login(%q, %q) err = %v, want ErrMissingCredentials", c.email, c.password, err)
		}
	}
}

func TestLoginUnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	createAdmin(t, svc, "real@example.com", "correct-horse", model.RoleAdmin)

	_, errUnknown := svc.Login(context.Background(), "ghost@example.com", "correct-horse")
	_, errWrong := svc.Login(context.Background(), "real@example.com", "wrong-password")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("got %v and %v, want ErrInvalidCredentials for both", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown.Error(), errWrong.Error())
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "off@example.com", "correct-horse", model.RoleEditor)
	if err := store.SetAdminActive(context.Background(), admin.ID, false); err != nil {
		t.Fatal(err)
	}

	// Correct password still yields the disabled error, not invalid credentials.
	_, err := svc.Login(context.Background(), "off@example.com", "correct-horse")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestLoginAdvancesLastLogin(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "ts@example.com", "correct-horse", model.RoleEditor)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	if _, err := svc.Login(context.Background(), "ts@example.com", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetAdminByID(context.Background(), admin.ID)
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(first) {
		t.Fatalf("last_login_at = %v, want %v", got.LastLoginAt, first)
	}

	second := first.Add(time.Hour)
	svc.now = func() time.Time { return second }
	if _, err := svc.Login(context.Background(), "ts@example.com", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetAdminByID(context.Background(), admin.ID)
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(second) {
		t.Fatalf("last_login_at = %v, want %v", got.LastLoginAt, second)
	}
}

type failingLastLoginStore struct {
	*config.Store
}

func (failingLastLoginStore) UpdateAdminLastLogin(context.Context, int64, time.Time) error {
	return errors.New("disk full")
}

func TestLoginSucceedsWhenLastLoginUpdateFails(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, failingLastLoginStore{store})
	createAdmin(t, svc, "best@example.com", "correct-horse", model.RoleEditor)

	res, err := svc.Login(context.Background(), "best@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	store := newTestStore(t)
	weak, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	admin := &model.Admin{
		Email: "weak@example.com", Username: "weak", PasswordHash: string(weak),
		Role: model.RoleEditor, IsActive: true,
	}
	if err := store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, store)
	stronger, _ := NewPasswordHasher(bcrypt.MinCost + 1)
	svc.hasher = stronger

	if _, err := svc.Login(context.Background(), "weak@example.com", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetAdminByID(context.Background(), admin.ID)
	cost, err := bcrypt.Cost([]byte(got.PasswordHash))
	if err != nil {
		t.Fatal(err)
	}
	if cost != bcrypt.MinCost+1 {
		t.Errorf("stored cost = %d, want %d", cost, bcrypt.MinCost+1)
	}
	if !stronger.Verify("correct-horse", got.PasswordHash) {
		t.Error("upgraded hash does not verify")
	}
}

func TestMe(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "me@example.com", "correct-horse", model.RoleAdmin)

	got, err := svc.Me(context.Background(), admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "me@example.com" {
		t.Errorf("email = %q", got.Email)
	}

	if _, err := svc.Me(context.Background(), 9999); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("missing admin err = %v, want ErrUnauthenticated", err)
	}

	store.SetAdminActive(context.Background(), admin.ID, false)
	if _, err := svc.Me(context.Background(), admin.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("inactive admin err = %v, want ErrUnauthenticated", err)
	}
}

func TestFindPublicByIDIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "idem@example.com", "correct-horse", model.RoleEditor)

	a, err := svc.FindPublicByID(context.Background(), admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.FindPublicByID(context.Background(), admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID || a.Email != b.Email || a.Role != b.Role ||
		a.PasswordHash != b.PasswordHash || !a.UpdatedAt.Equal(b.UpdatedAt) || a.LastLoginAt != nil || b.LastLoginAt != nil {
		t.Errorf("repeated lookups differ: %+v vs %+v", a, b)
	}
	if _, err := svc.FindPublicByID(context.Background(), 4242); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "pw@example.com", "correct-horse", model.RoleEditor)
	ctx := context.Background()

	before, _ := store.GetAdminByID(ctx, admin.ID)
	if err := svc.ChangePassword(ctx, admin.ID, "not-the-password", "brand-new-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current err = %v, want ErrInvalidCredentials", err)
	}
	after, _ := store.GetAdminByID(ctx, admin.ID)
	if before.PasswordHash != after.PasswordHash {
		t.Fatal("hash changed after rejected password change")
	}

	if err := svc.ChangePassword(ctx, admin.ID, "correct-horse", "brand-new-pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, "pw@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still works: %v", err)
	}
	if _, err := svc.Login(ctx, "pw@example.com", "brand-new-pass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestChangePasswordValidation(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	admin := createAdmin(t, svc, "v@example.com", "correct-horse", model.RoleEditor)

	err := svc.ChangePassword(context.Background(), admin.ID, "", "short")
	ve, ok := validate.As(err)
	if !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(ve.Fields) != 2 {
		t.Errorf("got %d field errors, want 2: %+v", len(ve.Fields), ve.Fields)
	}
	if !errors.Is(err, validate.ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}
}

func TestRegister(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store)
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterInput{Email: " New.Person@Example.com", Password: "long-enough"})
	if err != nil {
		t.Fatal(err)
	}
	if admin.Email != "new.person@example.com" {
		t.Errorf("email = %q", admin.Email)
	}
	if admin.Role != model.RoleEditor {
		t.Errorf("role = %q, want editor", admin.Role)
	}
	if admin.Username != "newperson" {
		t.Errorf("username = %q, want newperson", admin.Username)
	}
	if admin.PasswordHash == "long-enough" || admin.PasswordHash == "" {
		t.Error("password was not hashed")
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "new.person@example.com", Username: "other", Password: "long-enough"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate err = %v, want ErrConflict", err)
	}
}

func TestRegisterAggregatesViolations(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "short", Role: "owner"})
	ve, ok := validate.As(err)
	if !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"email", "password", "role"} {
		if !fields[want] {
			t.Errorf("missing violation for %s in %+v", want, ve.Fields)
		}
	}
}

func TestSetup(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	admin, err := svc.Setup(ctx, RegisterInput{Email: "root@example.com", Password: "long-enough", Role: model.RoleEditor})
	if err != nil {
		t.Fatal(err)
	}
	if admin.Role != model.RoleSuperAdmin {
		t.Errorf("role = %q, want super_admin", admin.Role)
	}
	if _, err := svc.Setup(ctx, RegisterInput{Email: "second@example.com", Password: "long-enough"}); !errors.Is(err, ErrSetupComplete) {
		t.Errorf("second setup err = %v, want ErrSetupComplete", err)
	}
}

func TestSetActiveAndRole(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()
	root := createAdmin(t, svc, "root@example.com", "correct-horse", model.RoleSuperAdmin)
	ed := createAdmin(t, svc, "ed@example.com", "correct-horse", model.RoleEditor)

	if _, err := svc.SetActive(ctx, root.ID, root.ID, false); !errors.Is(err, ErrForbidden) {
		t.Errorf("self-deactivate err = %v, want ErrForbidden", err)
	}
	got, err := svc.SetActive(ctx, root.ID, ed.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("expected editor to be inactive")
	}
	if _, err := svc.SetActive(ctx, root.ID, 777, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing target err = %v, want ErrNotFound", err)
	}

	if _, err := svc.SetRole(ctx, root.ID, root.ID, model.RoleEditor); !errors.Is(err, ErrForbidden) {
		t.Errorf("self role change err = %v, want ErrForbidden", err)
	}
	if _, err := svc.SetRole(ctx, root.ID, ed.ID, "owner"); !errors.Is(err, validate.ErrValidation) {
		t.Errorf("invalid role err = %v, want validation error", err)
	}
	got, err = svc.SetRole(ctx, root.ID, ed.ID, model.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", got.Role)
	}
}

func TestFindByEmailAndResetPassword(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()
	admin := createAdmin(t, svc, "ops@example.com", "old-password", model.RoleAdmin)

	got, err := svc.FindByEmail(ctx, " OPS@example.com")
	if err != nil || got.ID != admin.ID {
		t.Fatalf("FindByEmail = %v, %v", got, err)
	}
	if _, err := svc.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing email: err = %v, want ErrNotFound", err)
	}

	if err := svc.ResetPassword(ctx, admin.ID, "short"); !errors.Is(err, validate.ErrValidation) {
		t.Errorf("short password: err = %v", err)
	}
	if err := svc.ResetPassword(ctx, 9999, "long-enough-password"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v", err)
	}
	if err := svc.ResetPassword(ctx, admin.ID, "brand-new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Login(ctx, "ops@example.com", "old-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := svc.Login(ctx, "ops@example.com", "brand-new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestRegisterSuffixesDerivedUsernameOnCollision(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Email: "alice@one.com", Password: "password-123"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Register(ctx, RegisterInput{Email: "alice@two.com", Password: "password-123"})
	if err != nil {
		t.Fatalf("second alice: %v", err)
	}
	if first.Username != "alice" {
		t.Errorf("first username = %q, want alice", first.Username)
	}
	if second.Username == first.Username || !strings.HasPrefix(second.Username, "alice") || len(second.Username) != len("alice")+8 {
		t.Errorf("second username = %q", second.Username)
	}

	// Email duplicates and explicit username clashes are still conflicts.
	if _, err := svc.Register(ctx, RegisterInput{Email: "ALICE@one.com", Password: "password-123"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email: err = %v, want ErrConflict", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "alice@three.com", Username: "alice", Password: "password-123"}); !errors.Is(err, ErrConflict) {
		t.Errorf("explicit username clash: err = %v, want ErrConflict", err)
	}
}

func TestSuffixedUsernameFitsColumn(t *testing.T) {
	got := suffixedUsername(strings.Repeat("a", 64))
	if len(got) != 64 {
		t.Errorf("len = %d, want 64", len(got))
	}
	for _, r := range got {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			t.Fatalf("non-alphanumeric rune %q in %q", r, got)
		}
	}
}

func TestDummyHashPreparedUpFront(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	if svc.dummyHash == "" {
		t.Fatal("dummy hash not computed at construction")
	}
	cost, err := bcrypt.Cost([]byte(svc.dummyHash))
	if err != nil {
		t.Fatal(err)
	}
	if cost != svc.hasher.Cost() {
		t.Errorf("dummy cost = %d, want %d", cost, svc.hasher.Cost())
	}
}
