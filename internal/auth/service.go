package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/repo"
	"github.com/angelmondragon/localbiz-backend/internal/users"
	pkgAuth "github.com/angelmondragon/localbiz-backend/pkg/auth"
	"github.com/angelmondragon/localbiz-backend/pkg/auth/session"
	"github.com/angelmondragon/localbiz-backend/pkg/db"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/security"
)

const badCredentials = "invalid credentials"

type accounts interface {
	Transact(ctx context.Context, fn func(tx *gorm.DB) error) error
	ByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	Insert(ctx context.Context, tx *gorm.DB, a users.Account) (*models.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, rehash string) error
}

type sessions interface {
	Open(ctx context.Context, h session.Holder) (session.Grant, error)
	Rotate(ctx context.Context, sessionID, refreshToken string) (session.Grant, session.Holder, error)
	Close(ctx context.Context, sessionID string) error
}

type tokens interface {
	Mint(p pkgAuth.Principal) (string, time.Time, error)
	Inspect(raw string) (pkgAuth.Principal, error)
}

type ServiceParams struct {
	Users    accounts
	Sessions sessions
	Tokens   tokens
	Hasher   *security.Hasher
	Logger   *logger.Logger
}

// Service signs users in and out. Owners and admins share one users table;
// the role a caller asks for must match the stored role.
type Service struct {
	users    accounts
	sessions sessions
	tokens   tokens
	hasher   *security.Hasher
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Users == nil || p.Sessions == nil || p.Tokens == nil || p.Hasher == nil {
		return nil, errors.New("auth service: users, sessions, tokens and hasher are required")
	}
	if p.Logger == nil {
		return nil, errors.New("auth service: logger is required")
	}
	return &Service{
		users:    p.Users,
		sessions: p.Sessions,
		tokens:   p.Tokens,
		hasher:   p.Hasher,
		logg:     p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Login checks credentials against an account holding role. Every failure
// short of an outage reads as the same unauthorized error.
func (s *Service) Login(ctx context.Context, role enums.Role, in Credentials) (*Grant, error) {
	email := users.NormalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, badCredentials)
	}

	user, err := s.users.ByEmail(ctx, nil, email)
	if repo.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, badCredentials)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive || user.Role != role {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, badCredentials)
	}

	at := s.now()
	rehash := ""
	if s.hasher.Outdated(user.PasswordHash) {
		// A failed rehash is retried on the next login.
		rehash, _ = s.hasher.Hash(in.Password)
	}
	if err := s.users.RecordLogin(ctx, user.ID, at, rehash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	user.LastLoginAt = &at

	return s.grant(ctx, user)
}

// Register creates an account with role and signs it in.
func (s *Service) Register(ctx context.Context, role enums.Role, in Signup) (*Grant, error) {
	if role == enums.RoleOwner && !in.AcceptTOS {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accept_tos must be true").
			WithDetails(map[string]any{"field": "accept_tos"})
	}
	account, err := s.account(role, in)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.users.Transact(ctx, func(tx *gorm.DB) error {
		_, err := s.users.ByEmail(ctx, tx, account.Email)
		switch {
		case err == nil:
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		case !repo.IsNotFound(err):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
		}
		user, err = s.users.Insert(ctx, tx, account)
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		logger.FieldUserID: user.ID.String(),
		"role":             string(role),
	}), "account registered")
	return s.grant(ctx, user)
}

func (s *Service) account(role enums.Role, in Signup) (users.Account, error) {
	a := users.Account{
		Email:     users.NormalizeEmail(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     in.Phone,
		Role:      role,
	}
	for _, f := range [...]struct{ name, value string }{
		{"email", a.Email},
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
	} {
		if f.value == "" {
			return users.Account{}, pkgerrors.New(pkgerrors.CodeValidation, f.name+" is required").
				WithDetails(map[string]any{"field": f.name})
		}
	}
	if err := security.CheckStrength(in.Password); err != nil {
		return users.Account{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).
			WithDetails(map[string]any{"field": "password"})
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return users.Account{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	a.PasswordHash = hash
	return a, nil
}

// Refresh rotates the session named by a possibly expired access token.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*Grant, error) {
	p, err := s.inspect(accessToken)
	if err != nil {
		return nil, err
	}
	next, holder, err := s.sessions.Rotate(ctx, p.SessionID, refreshToken)
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	return s.sign(holder, next)
}

// Logout closes the session behind accessToken, expired or not.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	p, err := s.inspect(accessToken)
	if err != nil {
		return err
	}
	if err := s.sessions.Close(ctx, p.SessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close session")
	}
	s.logg.Info(s.logg.WithField(ctx, logger.FieldUserID, p.UserID.String()), "session closed")
	return nil
}

func (s *Service) inspect(accessToken string) (pkgAuth.Principal, error) {
	if strings.TrimSpace(accessToken) == "" {
		return pkgAuth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	p, err := s.tokens.Inspect(accessToken)
	if err != nil {
		return pkgAuth.Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return p, nil
}

func (s *Service) grant(ctx context.Context, user *models.User) (*Grant, error) {
	holder := session.Holder{UserID: user.ID, Role: user.Role}
	opened, err := s.sessions.Open(ctx, holder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open session")
	}
	g, err := s.sign(holder, opened)
	if err != nil {
		return nil, err
	}
	g.User = users.ProfileOf(user)
	return g, nil
}

func (s *Service) sign(h session.Holder, sg session.Grant) (*Grant, error) {
	token, exp, err := s.tokens.Mint(pkgAuth.Principal{UserID: h.UserID, Role: h.Role, SessionID: sg.SessionID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &Grant{AccessToken: token, RefreshToken: sg.RefreshToken, ExpiresAt: exp}, nil
}
