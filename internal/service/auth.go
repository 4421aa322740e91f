package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/validate"
)

// AdminStore is the credential store the authentication service needs.
// *config.Store satisfies it.
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*model.Admin, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
	CreateAdmin(ctx context.Context, admin *model.Admin) error
	UpdateAdminLastLogin(ctx context.Context, id int64, ts time.Time) error
	UpdateAdminPassword(ctx context.Context, id int64, hash string) error
	SetAdminActive(ctx context.Context, id int64, active bool) error
	SetAdminRole(ctx context.Context, id int64, role model.Role) error
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Admin     *model.Admin `json:"admin"`
}

// RegisterInput describes a new admin account.
type RegisterInput struct {
	Email    string     `json:"email" validate:"required,email,max=255"`
	Username string     `json:"username" validate:"omitempty,alphanum,min=3,max=64"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	Name     string     `json:"name" validate:"max=255"`
	Role     model.Role `json:"role" validate:"omitempty,oneof=editor admin super_admin"`
}

// AuthService implements login, identity lookup and account management for
// admins.
type AuthService struct {
	store  AdminStore
	hasher *PasswordHasher
	tokens *TokenIssuer
	logger *slog.Logger
	now    func() time.Time

	// dummyHash is compared against on unknown emails so the response time
	// matches a real password check.
	dummyHash string
}

func NewAuthService(store AdminStore, hasher *PasswordHasher, tokens *TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	if h, err := hasher.Hash(hex.EncodeToString(buf)); err == nil {
		s.dummyHash = h
	} else {
		logger.Error("failed to prepare dummy hash", "error", err)
	}
	return s
}

// Tokens returns the issuer used to sign login tokens.
func (s *AuthService) Tokens() *TokenIssuer { return s.tokens }

// Login runs the credential check:
// lookup, active check, password check, then token issue.
// Unknown emails and wrong passwords fail identically with
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = config.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			s.burnHashWork(password)
			s.logger.Warn("login failed", "email", email, "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !admin.IsActive {
		s.logger.Warn("login failed", "email", email, "reason", "account disabled")
		return nil, ErrAccountDisabled
	}

	if !s.hasher.Verify(password, admin.PasswordHash) {
		s.logger.Warn("login failed", "email", email, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(admin.ID, admin.Role, admin.Email)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Error("failed to record last login", "admin_id", admin.ID, "error", err)
	} else {
		admin.LastLoginAt = &now
	}

	if s.hasher.NeedsRehash(admin.PasswordHash) {
		s.upgradeHash(ctx, admin, password)
	}

	return &LoginResult{Token: token, ExpiresAt: exp, Admin: admin}, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, admin *model.Admin, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to rehash password", "admin_id", admin.ID, "error", err)
		return
	}
	if err := s.store.UpdateAdminPassword(ctx, admin.ID, hash); err != nil {
		s.logger.Error("failed to store upgraded hash", "admin_id", admin.ID, "error", err)
		return
	}
	admin.PasswordHash = hash
	s.logger.Info("password hash upgraded", "admin_id", admin.ID, "cost", s.hasher.Cost())
}

// burnHashWork spends one bcrypt operation at the configured cost.
func (s *AuthService) burnHashWork(password string) {
	if s.dummyHash != "" {
		s.hasher.Verify(password, s.dummyHash)
		return
	}
	_, _ = s.hasher.Hash(password)
}

// FindPublicByID returns the admin with id. Repeated calls have no side
// effects.
func (s *AuthService) FindPublicByID(ctx context.Context, id int64) (*model.Admin, error) {
	admin, err := s.store.GetAdminByID(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return admin, nil
}

// Me resolves the identity behind a verified token. A deleted or disabled
// account no longer counts as authenticated.
func (s *AuthService) Me(ctx context.Context, id int64) (*model.Admin, error) {
	admin, err := s.FindPublicByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !admin.IsActive {
		return nil, ErrUnauthenticated
	}
	return admin, nil
}

// ChangePassword replaces the password of admin id after checking current.
// On any failure the stored hash is left untouched.
func (s *AuthService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	var fields []error
	if current == "" {
		fields = append(fields, validate.Fieldf("currentPassword", "is required"))
	}
	switch {
	case next == "":
		fields = append(fields, validate.Fieldf("newPassword", "is required"))
	case len(next) < 8:
		fields = append(fields, validate.Fieldf("newPassword", "must be at least 8 characters"))
	case len(next) > 72:
		fields = append(fields, validate.Fieldf("newPassword", "must be at most 72 characters"))
	case next == current:
		fields = append(fields, validate.Fieldf("newPassword", "must differ from the current password"))
	}
	if err := validate.Merge(fields...); err != nil {
		return err
	}

	admin, err := s.Me(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, admin.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdateAdminPassword(ctx, id, hash); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Info("password changed", "admin_id", id)
	return nil
}

// Register validates in, hashes the password and stores a new active admin.
// Role defaults to editor and Username to the alphanumeric part of the
// email's local part.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.Admin, error) {
	in.Email = config.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = model.RoleEditor
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	derived := in.Username == ""
	if derived {
		in.Username = usernameFromEmail(in.Email)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	admin := &model.Admin{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.create(ctx, admin, derived); err != nil {
		return nil, err
	}
	s.logger.Info("admin registered", "admin_id", admin.ID, "email", admin.Email, "role", admin.Role)
	return admin, nil
}

// create inserts admin. A derived username that collides with another
// account gets a random suffix; an explicit one is reported as a conflict.
func (s *AuthService) create(ctx context.Context, admin *model.Admin, derived bool) error {
	if derived {
		if _, err := s.store.GetAdminByEmail(ctx, admin.Email); err == nil {
			return fmt.Errorf("%w: an admin with this email", ErrConflict)
		} else if !errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	base := admin.Username
	for attempt := 0; ; attempt++ {
		err := s.store.CreateAdmin(ctx, admin)
		if err == nil {
			return nil
		}
		if !errors.Is(err, config.ErrDuplicate) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !derived || attempt == maxUsernameAttempts {
			return fmt.Errorf("%w: an admin with this email or username", ErrConflict)
		}
		admin.Username = suffixedUsername(base)
	}
}

// Setup creates the first super_admin. It fails with ErrSetupComplete once
// any admin exists.
func (s *AuthService) Setup(ctx context.Context, in RegisterInput) (*model.Admin, error) {
	exists, err := s.store.HasAnyAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, ErrSetupComplete
	}
	in.Role = model.RoleSuperAdmin
	return s.Register(ctx, in)
}

// List returns every admin account.
func (s *AuthService) List(ctx context.Context) ([]model.Admin, error) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	return admins, nil
}

// SetActive enables or disables target. Admins cannot change their own
// status.
func (s *AuthService) SetActive(ctx context.Context, actorID, targetID int64, active bool) (*model.Admin, error) {
	if actorID == targetID {
		return nil, fmt.Errorf("%w: cannot change your own account status", ErrForbidden)
	}
	if err := s.store.SetAdminActive(ctx, targetID, active); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Info("admin status changed", "actor_id", actorID, "admin_id", targetID, "active", active)
	return s.FindPublicByID(ctx, targetID)
}

// SetRole assigns role to target. Admins cannot change their own role.
// Tokens already issued keep their old role until they expire.
func (s *AuthService) SetRole(ctx context.Context, actorID, targetID int64, role model.Role) (*model.Admin, error) {
	if !role.Valid() {
		return nil, validate.Fieldf("role", "must be one of: editor, admin, super_admin")
	}
	if actorID == targetID {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrForbidden)
	}
	if err := s.store.SetAdminRole(ctx, targetID, role); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Info("admin role changed", "actor_id", actorID, "admin_id", targetID, "role", role)
	return s.FindPublicByID(ctx, targetID)
}

// FindByEmail looks up an admin by (normalized) email.
func (s *AuthService) FindByEmail(ctx context.Context, email string) (*model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, config.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return admin, nil
}

// ResetPassword sets a new password for admin id without checking the
// current one. It backs the operator CLI, not the HTTP API.
func (s *AuthService) ResetPassword(ctx context.Context, id int64, next string) error {
	if len(next) < 8 || len(next) > 72 {
		return validate.Fieldf("password", "must be between 8 and 72 characters")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdateAdminPassword(ctx, id, hash); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Info("password reset", "admin_id", id)
	return nil
}

const maxUsernameAttempts = 3

// suffixedUsername appends 8 hex characters to base, keeping the result
// within the 64-character column limit.
func suffixedUsername(base string) string {
	if len(base) > 56 {
		base = base[:56]
	}
	return base + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	for len(name) < 3 {
		name += "0"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
