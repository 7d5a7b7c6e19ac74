package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultSubjectKey is the router locals key the subject middleware uses
const DefaultSubjectKey = "subject"

var subjectCtxKey = &contextKey{"subject"}

type contextKey struct {
	name string
}

// WithSubject sets the current subject in the given context
func WithSubject(ctx context.Context, subject Subject) context.Context {
	return context.WithValue(ctx, subjectCtxKey, subject)
}

// SubjectFromContext finds the current subject. A missing subject is not
// an anonymous one: callers decide which policy applies.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(subjectCtxKey).(Subject)
	return raw, ok && raw != nil
}

// UserFromContext returns the authenticated user, false for anonymous
// subjects or when nothing was resolved.
func UserFromContext(ctx context.Context) (*User, bool) {
	subject, ok := SubjectFromContext(ctx)
	if !ok {
		return nil, false
	}
	user, ok := subject.(*User)
	return user, ok && user != nil
}

// SubjectFromRouter extracts the subject from the router locals
func SubjectFromRouter(ctx router.Context, key string) (Subject, bool) {
	if key == "" {
		key = DefaultSubjectKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	subject, ok := raw.(Subject)
	return subject, ok
}

// CanFromContext evaluates perm against the subject stored in ctx
func CanFromContext(ctx context.Context, perm Permission) bool {
	subject, _ := SubjectFromContext(ctx)
	return Can(subject, perm)
}

// CanFromRouter evaluates perm against the subject in the router locals
func CanFromRouter(ctx router.Context, perm Permission) bool {
	subject, _ := SubjectFromRouter(ctx, "")
	return Can(subject, perm)
}
