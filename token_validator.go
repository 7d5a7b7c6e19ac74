package auth

import (
	"context"
)

// SubjectResolver turns a presented auth token into a subject
type SubjectResolver interface {
	Resolve(ctx context.Context, token string) (*User, error)
}

// SubjectResolverFunc adapts a function into a SubjectResolver.
type SubjectResolverFunc func(ctx context.Context, token string) (*User, error)

// Resolve satisfies the SubjectResolver interface.
func (f SubjectResolverFunc) Resolve(ctx context.Context, token string) (*User, error) {
	if f == nil {
		return nil, ErrTokenRejected
	}
	return f(ctx, token)
}

// AuthTokenResolver verifies an auth token and loads the user it names.
// Bad tokens and unknown subjects both yield ErrTokenRejected.
type AuthTokenResolver struct {
	tokens *TokenAuthority
	users  UserStore
	logger Logger
}

var _ SubjectResolver = (*AuthTokenResolver)(nil)

// NewAuthTokenResolver creates a resolver backed by users
func NewAuthTokenResolver(tokens *TokenAuthority, users UserStore) *AuthTokenResolver {
	return &AuthTokenResolver{
		tokens: tokens,
		users:  users,
		logger: defLogger{},
	}
}

func (r *AuthTokenResolver) WithLogger(l Logger) *AuthTokenResolver {
	r.logger = normalizeLogger(l)
	return r
}

// Resolve satisfies the SubjectResolver interface.
func (r *AuthTokenResolver) Resolve(ctx context.Context, token string) (*User, error) {
	grant, ok := r.tokens.Verify(token, ClaimAuth)
	if !ok {
		return nil, ErrTokenRejected
	}

	id, ok := grant.SubjectUUID()
	if !ok {
		return nil, ErrTokenRejected
	}

	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		if IsRecordNotFound(err) {
			r.logger.Debug("auth token subject %s not found", id)
			return nil, ErrTokenRejected
		}
		return nil, err
	}

	if err := r.users.TouchLastSeen(ctx, user); err != nil {
		r.logger.Warn("failed to record last seen for %s: %v", id, err)
	}

	return user, nil
}
