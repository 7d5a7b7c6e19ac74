package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"
)

// Resource names understood by WSAuthClaimsAdapter
const (
	ResourcePosts    = "posts"
	ResourceComments = "comments"
	ResourceUsers    = "users"
)

// WSTokenValidator implements go-router's WSTokenValidator by resolving
// auth tokens to accounts, e.g. for live comment streams.
type WSTokenValidator struct {
	resolver SubjectResolver
}

func NewWSTokenValidator(resolver SubjectResolver) *WSTokenValidator {
	return &WSTokenValidator{
		resolver: resolver,
	}
}

// Validate satisfies router.WSTokenValidator
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	if w == nil || w.resolver == nil {
		return nil, ErrTokenRejected
	}
	user, err := w.resolver.Resolve(context.Background(), tokenString)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrTokenRejected
	}
	return &WSAuthClaimsAdapter{user: user}, nil
}

// WSAuthClaimsAdapter maps resource verbs onto permission flags
type WSAuthClaimsAdapter struct {
	user *User
}

func (w *WSAuthClaimsAdapter) Subject() string {
	return w.user.SubjectID()
}

func (w *WSAuthClaimsAdapter) UserID() string {
	return w.user.SubjectID()
}

func (w *WSAuthClaimsAdapter) Role() string {
	if w.user.Role == nil {
		return ""
	}
	return w.user.Role.Name
}

// CanRead is true for every authenticated account
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return true
}

func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	switch resource {
	case ResourceComments:
		return w.user.Can(PermissionModerate)
	case ResourcePosts, ResourceUsers:
		return w.user.IsAdministrator()
	default:
		return false
	}
}

func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	switch resource {
	case ResourceComments:
		return w.user.Can(PermissionComment)
	case ResourcePosts:
		return w.user.Can(PermissionWrite)
	case ResourceUsers:
		return w.user.IsAdministrator()
	default:
		return false
	}
}

func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.CanEdit(resource)
}

func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return strings.EqualFold(w.Role(), role)
}

// IsAtLeast reports whether the account holds every permission of the
// named default role.
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	for _, def := range DefaultRoles() {
		if !strings.EqualFold(def.Name, minRole) {
			continue
		}
		var want Permission
		for _, p := range def.Permissions {
			want |= p
		}
		return w.user.Can(want)
	}
	return false
}

// NewWSAuthMiddleware returns a websocket auth middleware backed by resolver
func NewWSAuthMiddleware(resolver SubjectResolver, config ...router.WSAuthConfig) router.WebSocketMiddleware {
	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = NewWSTokenValidator(resolver)

	return router.NewWSAuth(cfg)
}

// WSUserFromContext returns the account attached by the websocket auth
// middleware.
func WSUserFromContext(ctx context.Context) (*User, bool) {
	claims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}
	adapter, ok := claims.(*WSAuthClaimsAdapter)
	if !ok || adapter.user == nil {
		return nil, false
	}
	return adapter.user, true
}
