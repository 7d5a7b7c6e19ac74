package gateadapter

import (
	"context"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-featuregate/gate"
)

const (
	actorTypeUser      = "user"
	actorTypeAnonymous = "anonymous"
)

// SubjectExtractor finds the request subject in a context
type SubjectExtractor func(context.Context) (auth.Subject, bool)

// PermissionFormatter turns a permission flag into a gate permission string
type PermissionFormatter func(perm auth.Permission) string

type Option func(*ClaimsProvider)

// ClaimsProvider derives feature gate claims from the subject stored by
// the subject middleware, so gates can target roles and permission flags.
type ClaimsProvider struct {
	extractor     SubjectExtractor
	permFormatter PermissionFormatter
}

func NewClaimsProvider(opts ...Option) *ClaimsProvider {
	provider := &ClaimsProvider{
		extractor:     auth.SubjectFromContext,
		permFormatter: defaultPermissionFormatter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.extractor == nil {
		provider.extractor = auth.SubjectFromContext
	}
	if provider.permFormatter == nil {
		provider.permFormatter = defaultPermissionFormatter
	}
	return provider
}

func WithSubjectExtractor(extractor SubjectExtractor) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.extractor = extractor
	}
}

func WithPermissionFormatter(format PermissionFormatter) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.permFormatter = format
	}
}

// ClaimsFromContext implements gate.ClaimsProvider.
func (p *ClaimsProvider) ClaimsFromContext(ctx context.Context) (gate.ActorClaims, error) {
	if p == nil || p.extractor == nil {
		return gate.ActorClaims{}, nil
	}
	subject, ok := p.extractor(ctx)
	if !ok || subject == nil {
		return gate.ActorClaims{}, nil
	}
	return claimsFromSubject(subject, p.permFormatter), nil
}

// ClaimsFromSubject builds ActorClaims from a subject using defaults.
func ClaimsFromSubject(subject auth.Subject) gate.ActorClaims {
	return claimsFromSubject(subject, defaultPermissionFormatter)
}

func claimsFromSubject(subject auth.Subject, format PermissionFormatter) gate.ActorClaims {
	if subject == nil || subject.IsAnonymous() {
		return gate.ActorClaims{}
	}

	claims := gate.ActorClaims{
		SubjectID: subject.SubjectID(),
	}

	user, ok := subject.(*auth.User)
	if !ok || user == nil || user.Role == nil {
		return claims
	}

	claims.Roles = []string{user.Role.Name}
	for _, perm := range user.Role.Permissions.Flags() {
		claims.Perms = append(claims.Perms, format(perm))
	}
	return claims
}

func defaultPermissionFormatter(perm auth.Permission) string {
	return "blog:" + perm.String()
}

// ActorRefFromSubject builds a gate ActorRef, anonymous visitors get an
// empty id.
func ActorRefFromSubject(subject auth.Subject) gate.ActorRef {
	if subject == nil || subject.IsAnonymous() {
		return gate.ActorRef{Type: actorTypeAnonymous}
	}
	ref := gate.ActorRef{
		ID:   subject.SubjectID(),
		Type: actorTypeUser,
	}
	if user, ok := subject.(*auth.User); ok && user != nil {
		ref.Name = user.Username
	}
	return ref
}

// ActorRefFromContext extracts an ActorRef from the subject in ctx.
func ActorRefFromContext(ctx context.Context) (gate.ActorRef, bool) {
	subject, ok := auth.SubjectFromContext(ctx)
	if !ok {
		return gate.ActorRef{}, false
	}
	return ActorRefFromSubject(subject), true
}

var _ gate.ClaimsProvider = (*ClaimsProvider)(nil)
