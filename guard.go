package auth

import (
	"context"

	"github.com/goliatone/go-featuregate/gate"
)

// FeatureComments is the feature gate key that switches commenting off
// for everyone, administrators included.
const FeatureComments = "blog.comments"

// Authorize returns nil when subject holds perm. Subjects without an
// account get ErrUnauthenticated so the caller can ask them to sign in,
// unconfirmed accounts get ErrAccountUnconfirmed and other authenticated
// subjects get ErrForbidden.
func Authorize(subject Subject, perm Permission) error {
	if err := RequireConfirmed(subject); err != nil {
		return err
	}
	if Can(subject, perm) {
		return nil
	}
	if subject == nil || subject.IsAnonymous() {
		return ErrUnauthenticated
	}
	return ErrForbidden
}

// AuthorizeContext runs Authorize against the subject stored in ctx
func AuthorizeContext(ctx context.Context, perm Permission) error {
	subject, _ := SubjectFromContext(ctx)
	return Authorize(subject, perm)
}

// RequireAuthenticated rejects anonymous and missing subjects
func RequireAuthenticated(subject Subject) error {
	if subject == nil || subject.IsAnonymous() {
		return ErrUnauthenticated
	}
	return nil
}

type confirmable interface {
	IsConfirmed() bool
}

// RequireConfirmed rejects accounts that have not followed their
// confirmation link. Anonymous and missing subjects pass, the permission
// check decides for them.
func RequireConfirmed(subject Subject) error {
	if subject == nil || subject.IsAnonymous() {
		return nil
	}
	if c, ok := subject.(confirmable); ok && !c.IsConfirmed() {
		return ErrAccountUnconfirmed
	}
	return nil
}

// AuthorizeAuthorOrAdmin allows the author of a resource or an
// administrator, used for editing and deleting posts.
func AuthorizeAuthorOrAdmin(subject Subject, authorID string) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if err := RequireConfirmed(subject); err != nil {
		return err
	}
	if authorID != "" && subject.SubjectID() == authorID {
		return nil
	}
	if subject.IsAdministrator() {
		return nil
	}
	return ErrForbidden
}

// CommentGate combines the COMMENT permission with the session throttle
type CommentGate struct {
	throttle    *CommentThrottle
	featureGate gate.FeatureGate
}

func NewCommentGate(throttle *CommentThrottle) *CommentGate {
	return &CommentGate{throttle: throttle}
}

func (g *CommentGate) WithFeatureGate(fg gate.FeatureGate) *CommentGate {
	g.featureGate = fg
	return g
}

// Check authorizes subject to comment and records the attempt against the
// session. The throttle is not touched when the permission check fails.
func (g *CommentGate) Check(ctx context.Context, subject Subject, sessionID string) error {
	if g.featureGate != nil {
		if err := requireFeatureGate(ctx, g.featureGate, FeatureComments, ErrCommentsDisabled); err != nil {
			return err
		}
	}
	if err := Authorize(subject, PermissionComment); err != nil {
		return err
	}
	if g.throttle == nil {
		return nil
	}
	return g.throttle.Allow(ctx, sessionID)
}
