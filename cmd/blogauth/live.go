package main

import (
	"context"
	"encoding/json"

	auth "github.com/goliatone/go-blog-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	liveEventSession          = "session"
	liveEventCommentAuthorize = "comment.authorize"
)

// LiveController serves the authenticated websocket the comment widget
// keeps open while a reader is on a post.
type LiveController struct {
	comments *auth.CommentGate
	logger   auth.Logger
}

func NewLiveController(comments *auth.CommentGate, logger auth.Logger) *LiveController {
	return &LiveController{comments: comments, logger: logger}
}

// Middleware chains recovery and logging around the token check
func (l *LiveController) Middleware(resolver auth.SubjectResolver) router.WebSocketMiddleware {
	return router.ChainWSMiddleware(
		router.NewWSRecover(),
		router.NewWSLogger(),
		auth.NewWSAuthMiddleware(resolver),
	)
}

func (l *LiveController) Handle(ctx context.Context, client router.WSClient) error {
	user, ok := auth.WSUserFromContext(ctx)
	if !ok {
		_ = client.Close(router.ClosePolicyViolation, "authentication required")
		return auth.ErrUnauthenticated
	}

	if err := client.SendJSON(l.session(user)); err != nil {
		return err
	}

	return client.OnJSON(liveEventCommentAuthorize, func(ctx context.Context, _ json.RawMessage) error {
		return client.SendJSON(l.authorizeComment(ctx, user))
	})
}

func (l *LiveController) session(user *auth.User) map[string]any {
	permissions := []string{}
	if user.Role != nil {
		for _, p := range user.Role.Permissions.Flags() {
			permissions = append(permissions, p.String())
		}
	}
	return map[string]any{
		"type":        liveEventSession,
		"user_id":     user.ID.String(),
		"role":        user.Role.String(),
		"permissions": permissions,
	}
}

func (l *LiveController) authorizeComment(ctx context.Context, user *auth.User) map[string]any {
	reply := map[string]any{
		"type":    liveEventCommentAuthorize,
		"allowed": true,
	}

	err := l.comments.Check(ctx, user, commentSessionKey(user, ""))
	if err == nil {
		return reply
	}

	reply["allowed"] = false
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		reply["error"] = richErr.TextCode
	} else {
		if l.logger != nil {
			l.logger.Error("live comment check failed: %v", err)
		}
		reply["error"] = "INTERNAL"
	}
	return reply
}
