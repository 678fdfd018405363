package models

import (
	"context"
	"errors"
	"fmt"
	slogctx "github.com/veqryn/slog-context"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("models: invalid name or password")
	ErrWeakPassword       = errors.New("models: password must be at least 8 characters")
	ErrSubjectExists      = errors.New("models: subject already exists")
)

const minPasswordLength = 8

type AuthService struct {
	AuthRepository
	Now func() time.Time
}

type AuthSubject struct {
	CreatedTime  time.Time
	UpdatedTime  time.Time
	ID           string
	Name         string
	PasswordHash string
	RoleNames    []string
}

type Role struct {
	Name        string
	Permissions []string
}

type AuthRepository interface {
	FetchAuthSubjectByID(ctx context.Context, id string) (*AuthSubject, error)
	FetchAuthSubjectByName(ctx context.Context, name string) (*AuthSubject, error)
	FetchAuthSubjects(ctx context.Context) ([]AuthSubject, error)
	CreateAuthSubject(ctx context.Context, subject AuthSubject) (*AuthSubject, error)
}

// SessionStatus mirrors what a client can know about its session.
type SessionStatus string

const (
	SessionUnauthenticated SessionStatus = "unauthenticated"
	SessionAuthenticated   SessionStatus = "authenticated"
	SessionLoading         SessionStatus = "loading"
)

type Authn struct {
	AuthSubject *AuthSubject
	TokenID     string
	ExpiresTime time.Time
}

func (a Authn) Status() SessionStatus {
	if a.AuthSubject == nil || a.AuthSubject.IsAnonymous() {
		return SessionUnauthenticated
	}
	return SessionAuthenticated
}

func (a Authn) LogValue() slog.Value {
	name := ""
	if a.AuthSubject != nil {
		name = a.AuthSubject.Name
	}
	return slog.GroupValue(
		slog.Bool("hasToken", a.TokenID != ""),
		slog.String("status", string(a.Status())),
		slog.String("authSubject", name),
	)
}

var anonymousAuthSubject = &AuthSubject{Name: "anonymous", RoleNames: []string{}}

// AnonymousAuthn is the identity of a request without a valid session.
func AnonymousAuthn() *Authn {
	return &Authn{AuthSubject: anonymousAuthSubject}
}

func (as *AuthSubject) IsAnonymous() bool {
	return as.Name == "anonymous"
}

func (service *AuthService) now() time.Time {
	if service.Now != nil {
		return service.Now()
	}
	return time.Now()
}

// SubjectByID returns the anonymous subject when the id is unknown, so a
// stale session degrades to a signed-out one.
func (service *AuthService) SubjectByID(ctx context.Context, id string) *AuthSubject {
	log := slogctx.FromCtx(ctx)
	if id == "" {
		return anonymousAuthSubject
	}
	as, err := service.FetchAuthSubjectByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn("cannot fetch auth subject", slog.String("id", id), slog.Any("error", err))
		}
		return anonymousAuthSubject
	}
	return as
}

func (service *AuthService) SignIn(ctx context.Context, name, password string) (*AuthSubject, error) {
	log := slogctx.FromCtx(ctx)
	as, err := service.FetchAuthSubjectByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug("sign in: unknown subject", slog.String("name", name))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("cannot fetch auth subject: %w", err)
	}
	err = bcrypt.CompareHashAndPassword([]byte(as.PasswordHash), []byte(password))
	if err != nil {
		log.Debug("sign in: password mismatch", slog.String("name", name))
		return nil, ErrInvalidCredentials
	}
	return as, nil
}

func (service *AuthService) Register(ctx context.Context, name, password string, roleNames []string) (*AuthSubject, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == anonymousAuthSubject.Name {
		return nil, fmt.Errorf("models: invalid subject name %q", name)
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	for _, roleName := range roleNames {
		if _, ok := roleByName(roleName); !ok {
			return nil, fmt.Errorf("models: unknown role %q", roleName)
		}
	}

	_, err := service.FetchAuthSubjectByName(ctx, name)
	if err == nil {
		return nil, ErrSubjectExists
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("cannot fetch auth subject: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("cannot hash password: %w", err)
	}
	now := service.now()
	return service.CreateAuthSubject(ctx, AuthSubject{
		ID:           primitive.NewObjectIDFromTimestamp(now).Hex(),
		Name:         name,
		PasswordHash: string(hash),
		RoleNames:    roleNames,
		CreatedTime:  now,
		UpdatedTime:  now,
	})
}

// EnsureAdmin creates the bootstrap admin subject unless it already exists.
func (service *AuthService) EnsureAdmin(ctx context.Context, name, password string) error {
	log := slogctx.FromCtx(ctx)
	if name == "" {
		return nil
	}
	_, err := service.Register(ctx, name, password, []string{"admin"})
	if errors.Is(err, ErrSubjectExists) {
		log.Debug("admin subject already exists", slog.String("name", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot create admin subject: %w", err)
	}
	log.Info("created admin subject", slog.String("name", name))
	return nil
}

var defaultRoles = map[string]*Role{
	"admin":    {Name: "admin", Permissions: []string{"*"}},
	"denied":   {Name: "denied", Permissions: []string{}},
	"readable": {Name: "readable", Permissions: []string{"api:entries:read"}},
	"diarist": {Name: "diarist", Permissions: []string{
		"api:entries:read",
		"api:entries:create",
		"api:entries:update",
		"api:entries:delete",
	}},
}

func roleByName(name string) (*Role, bool) {
	role, ok := defaultRoles[name]
	return role, ok
}

func (service *AuthService) IsPermitted(ctx context.Context, a *Authn, requiredPermission string) bool {
	log := slogctx.FromCtx(ctx)
	if a == nil || a.AuthSubject == nil {
		return false
	}
	for _, roleName := range a.AuthSubject.RoleNames {
		role, ok := roleByName(roleName)
		if !ok {
			log.Debug("role not found", "roleName", roleName)
			continue
		}

		for _, permission := range role.Permissions {
			if permissionImplies(permission, requiredPermission) {
				log.Debug("role is allowed",
					slog.String("roleName", roleName),
					slog.String("perm", permission),
					slog.String("requiredPerm", requiredPermission),
				)
				return true
			}
		}
	}

	return false
}

// permissionImplies does shiro-style matching, eg api:entries:read is
// implied by api:*:read, *:*:read and *. A granted permission with fewer
// parts than the required one implies everything below it.
func permissionImplies(granted, required string) bool {
	if granted == "*" || granted == required {
		return true
	}
	grantedParts := strings.Split(granted, ":")
	requiredParts := strings.Split(required, ":")
	if len(grantedParts) > len(requiredParts) {
		return false
	}
	for i, part := range grantedParts {
		if part != "*" && part != requiredParts[i] {
			return false
		}
	}
	return true
}
