package main

import (
	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-router"
)

// APIController answers authorization questions for the blog frontend
type APIController struct {
	comments   *auth.CommentGate
	errHandler func(router.Context, error) error
}

func (c *APIController) Me(ctx router.Context) error {
	subject, _ := auth.SubjectFromRouter(ctx, "")
	user, ok := subject.(*auth.User)
	if !ok || user == nil {
		return c.errHandler(ctx, auth.ErrUnauthenticated)
	}

	permissions := []string{}
	if user.Role != nil {
		for _, p := range user.Role.Permissions.Flags() {
			permissions = append(permissions, p.String())
		}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user":          user,
		"role":          user.Role.String(),
		"permissions":   permissions,
		"administrator": user.IsAdministrator(),
	})
}

// AuthorizeComment runs the comment gate. The throttle is keyed on the
// account for signed in users and on the client address otherwise.
func (c *APIController) AuthorizeComment(ctx router.Context) error {
	subject, _ := auth.SubjectFromRouter(ctx, "")

	session := commentSessionKey(subject, ctx.IP())

	if err := c.comments.Check(ctx.Context(), subject, session); err != nil {
		return c.errHandler(ctx, err)
	}

	return c.Allowed(ctx)
}

func commentSessionKey(subject auth.Subject, ip string) string {
	if subject != nil && !subject.IsAnonymous() && subject.SubjectID() != "" {
		return "user:" + subject.SubjectID()
	}
	return "ip:" + ip
}

type postAuthorizePayload struct {
	AuthorID string `json:"author_id"`
}

// AuthorizePost checks WRITE for new posts and the author or admin rule
// when an existing post's author is given
func (c *APIController) AuthorizePost(ctx router.Context) error {
	subject, _ := auth.SubjectFromRouter(ctx, "")

	payload := new(postAuthorizePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.errHandler(ctx, err)
	}

	var err error
	if payload.AuthorID == "" {
		err = auth.Authorize(subject, auth.PermissionWrite)
	} else {
		err = auth.AuthorizeAuthorOrAdmin(subject, payload.AuthorID)
	}
	if err != nil {
		return c.errHandler(ctx, err)
	}

	return c.Allowed(ctx)
}

func (c *APIController) Allowed(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"allowed": true,
	})
}
