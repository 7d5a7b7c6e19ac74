package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func expectJSON(ctx *router.MockContext, status int) *auth.ErrorResponse {
	body := &auth.ErrorResponse{}
	ctx.On("JSON", status, mock.Anything).Run(func(args mock.Arguments) {
		if resp, ok := args.Get(1).(auth.ErrorResponse); ok {
			*body = resp
		}
	}).Return(nil).Once()
	return body
}

func TestPermissionRequired(t *testing.T) {
	mw := auth.PermissionRequired(auth.PermissionModerate, auth.JSONErrorHandler(nopLogger{}, false))

	reached := false
	next := func(router.Context) error {
		reached = true
		return nil
	}

	t.Run("holder passes", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		ctx.LocalsMock[auth.DefaultSubjectKey] = userWith(auth.PermissionComment | auth.PermissionModerate)

		require.NoError(t, mw(next)(ctx))
		assert.True(t, reached)
	})

	t.Run("authenticated without permission is forbidden", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		ctx.LocalsMock[auth.DefaultSubjectKey] = userWith(auth.PermissionComment)
		body := expectJSON(ctx, http.StatusForbidden)

		require.NoError(t, mw(next)(ctx))
		assert.False(t, reached)
		assert.Equal(t, auth.TextCodeForbidden, body.TextCode)
		ctx.AssertExpectations(t)
	})

	t.Run("anonymous must sign in", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		ctx.LocalsMock[auth.DefaultSubjectKey] = auth.NewAnonymousSubject(auth.AnonymousPolicy{CommentsEnabled: true})
		body := expectJSON(ctx, http.StatusUnauthorized)

		require.NoError(t, mw(next)(ctx))
		assert.False(t, reached)
		assert.Equal(t, auth.TextCodeUnauthenticated, body.TextCode)
	})

	t.Run("missing subject must sign in", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		expectJSON(ctx, http.StatusUnauthorized)

		require.NoError(t, mw(next)(ctx))
		assert.False(t, reached)
	})
}

func TestAuthenticationRequired(t *testing.T) {
	mw := auth.AuthenticationRequired(auth.JSONErrorHandler(nopLogger{}, false))
	next := func(router.Context) error { return nil }

	ctx := router.NewMockContext()
	ctx.LocalsMock[auth.DefaultSubjectKey] = userWith(auth.PermissionNone)
	require.NoError(t, mw(next)(ctx))

	ctx = router.NewMockContext()
	ctx.LocalsMock[auth.DefaultSubjectKey] = auth.NewAnonymousSubject(auth.AnonymousPolicy{})
	expectJSON(ctx, http.StatusUnauthorized)
	require.NoError(t, mw(next)(ctx))
	ctx.AssertExpectations(t)
}

func TestJSONErrorHandlerHidesInternalErrors(t *testing.T) {
	handler := auth.JSONErrorHandler(nopLogger{}, true)

	ctx := router.NewMockContext()
	body := expectJSON(ctx, http.StatusInternalServerError)

	require.NoError(t, handler(ctx, errors.New("pq: password authentication failed")))
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), body.Error)
}

func newControllerContext(subject auth.Subject) *router.MockContext {
	ctx := router.NewMockContext()
	if subject != nil {
		ctx.LocalsMock[auth.DefaultSubjectKey] = subject
	}
	ctx.On("Context").Return(context.Background())
	return ctx
}

func TestAccountControllerConfirm(t *testing.T) {
	repo := newMemoryRepo()
	tokens := newTestAuthority(newFakeClock())
	controller := auth.NewAccountController(repo, tokens, testOptions(),
		auth.WithControllerLogger(nopLogger{}),
		auth.WithControllerMailer(&recordingMailer{}),
	)

	user := repo.addUser("reader", "reader@example.com", "cat123", auth.RoleUser, false)

	t.Run("valid link confirms", func(t *testing.T) {
		token, err := tokens.MintConfirmationToken(user)
		require.NoError(t, err)

		ctx := newControllerContext(user)
		ctx.ParamsM["token"] = token

		var payload map[string]any
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]any)
		}).Return(nil)

		require.NoError(t, controller.Confirm(ctx))
		assert.Equal(t, true, payload["confirmed"])
		assert.True(t, user.Confirmed)
	})

	t.Run("anonymous cannot confirm", func(t *testing.T) {
		ctx := newControllerContext(auth.NewAnonymousSubject(auth.AnonymousPolicy{}))
		ctx.ParamsM["token"] = "whatever"
		body := expectJSON(ctx, http.StatusUnauthorized)

		require.NoError(t, controller.Confirm(ctx))
		assert.Equal(t, auth.TextCodeUnauthenticated, body.TextCode)
	})
}

func TestAccountControllerChangeEmail(t *testing.T) {
	repo := newMemoryRepo()
	tokens := newTestAuthority(newFakeClock())
	controller := auth.NewAccountController(repo, tokens, testOptions(),
		auth.WithControllerLogger(nopLogger{}),
	)

	user := repo.addUser("mover", "old@example.com", "cat123", auth.RoleUser, true)

	t.Run("forged link is rejected", func(t *testing.T) {
		ctx := newControllerContext(user)
		ctx.ParamsM["token"] = "forged.token.value"
		body := expectJSON(ctx, http.StatusUnauthorized)

		require.NoError(t, controller.ChangeEmail(ctx))
		assert.Equal(t, auth.TextCodeTokenRejected, body.TextCode)
		assert.Equal(t, "old@example.com", user.Email)
	})

	t.Run("valid link moves the account", func(t *testing.T) {
		token, err := tokens.MintChangeEmailToken(user, "new@example.com")
		require.NoError(t, err)

		ctx := newControllerContext(user)
		ctx.ParamsM["token"] = token

		var payload map[string]any
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]any)
		}).Return(nil)

		require.NoError(t, controller.ChangeEmail(ctx))
		assert.Equal(t, "new@example.com", payload["email"])
	})
}

func TestNewAccountControllerRequiresDependencies(t *testing.T) {
	assert.Panics(t, func() {
		auth.NewAccountController(nil, newTestAuthority(newFakeClock()), testOptions())
	})
	assert.Panics(t, func() {
		auth.NewAccountController(newMemoryRepo(), nil, testOptions())
	})
}

func TestConfirmationRequired(t *testing.T) {
	mw := auth.ConfirmationRequired(auth.JSONErrorHandler(nopLogger{}, false))

	reached := false
	next := func(router.Context) error {
		reached = true
		return nil
	}

	t.Run("confirmed account passes", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		ctx.LocalsMock[auth.DefaultSubjectKey] = userWith(auth.PermissionComment)

		require.NoError(t, mw(next)(ctx))
		assert.True(t, reached)
	})

	t.Run("unconfirmed account is held back", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		ctx.LocalsMock[auth.DefaultSubjectKey] = unconfirmedWith(auth.PermissionComment)
		body := expectJSON(ctx, http.StatusForbidden)

		require.NoError(t, mw(next)(ctx))
		assert.False(t, reached)
		assert.Equal(t, auth.TextCodeAccountUnconfirmed, body.TextCode)
		ctx.AssertExpectations(t)
	})

	t.Run("anonymous must sign in", func(t *testing.T) {
		reached = false
		ctx := router.NewMockContext()
		ctx.LocalsMock[auth.DefaultSubjectKey] = auth.NewAnonymousSubject(auth.AnonymousPolicy{CommentsEnabled: true})
		body := expectJSON(ctx, http.StatusUnauthorized)

		require.NoError(t, mw(next)(ctx))
		assert.False(t, reached)
		assert.Equal(t, auth.TextCodeUnauthenticated, body.TextCode)
	})
}

// A new account signs up, gets a token before confirming, and uses it to
// follow the confirmation link. Until then every other protected route
// answers ACCOUNT_UNCONFIRMED.
func TestRegisterTokenConfirmOverHTTP(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	tokens := newTestAuthority(newFakeClock())
	errHandler := auth.JSONErrorHandler(nopLogger{}, false)

	controller := auth.NewAccountController(repo, tokens, testOptions(),
		auth.WithControllerLogger(nopLogger{}),
		auth.WithControllerMailer(&recordingMailer{}),
		auth.WithControllerErrorHandler(errHandler),
	)

	var registered *auth.RegisterUserResponse
	err := auth.NewRegisterUserHandler(repo, tokens, testOptions()).
		WithLogger(nopLogger{}).
		Execute(ctx, auth.RegisterUserMessage{
			Username:        "newbie",
			Email:           "newbie@example.com",
			Password:        "cat123",
			ConfirmPassword: "cat123",
			OnResponse:      func(r *auth.RegisterUserResponse) { registered = r },
		})
	require.NoError(t, err)

	var issued *auth.IssueAuthTokenResponse
	err = auth.NewIssueAuthTokenHandler(repo, tokens).
		WithLogger(nopLogger{}).
		Execute(ctx, auth.IssueAuthTokenMessage{
			Email:      "newbie@example.com",
			Password:   "cat123",
			OnResponse: func(r *auth.IssueAuthTokenResponse) { issued = r },
		})
	require.NoError(t, err)
	require.NotNil(t, issued)
	assert.False(t, issued.Confirmed)

	resolver := auth.NewAuthTokenResolver(tokens, repo.Users()).WithLogger(nopLogger{})

	subject, err := resolver.Resolve(ctx, issued.Token)
	require.NoError(t, err)

	gated := auth.ConfirmationRequired(errHandler)(func(router.Context) error {
		t.Fatal("unconfirmed account reached a gated route")
		return nil
	})
	blocked := newControllerContext(subject)
	body := expectJSON(blocked, http.StatusForbidden)
	require.NoError(t, gated(blocked))
	assert.Equal(t, auth.TextCodeAccountUnconfirmed, body.TextCode)

	confirm := auth.AuthenticationRequired(errHandler)(controller.Confirm)
	req := newControllerContext(subject)
	req.ParamsM["token"] = registered.ConfirmationToken

	var payload map[string]any
	req.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, confirm(req))
	assert.Equal(t, true, payload["confirmed"])
	assert.Equal(t, false, payload["already_confirmed"])

	subject, err = resolver.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, subject.Confirmed)
	assert.NoError(t, auth.Authorize(subject, auth.PermissionComment))
}

func TestAccountControllerUpdateProfile(t *testing.T) {
	repo := newMemoryRepo()
	controller := auth.NewAccountController(repo, newTestAuthority(newFakeClock()), testOptions(),
		auth.WithControllerLogger(nopLogger{}),
	)
	user := repo.addUser("reader", "reader@example.com", "cat123", auth.RoleUser, true)

	ctx := newControllerContext(user)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*auth.ProfilePayload).AboutMe = "hello there"
	}).Return(nil)

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.UpdateProfile(ctx))
	assert.Equal(t, "hello there", user.AboutMe)
	assert.Equal(t, user, payload["user"])
}

func TestAccountControllerUpdateAccount(t *testing.T) {
	repo := newMemoryRepo()
	controller := auth.NewAccountController(repo, newTestAuthority(newFakeClock()), testOptions(),
		auth.WithControllerLogger(nopLogger{}),
	)
	admin := repo.addUser("admin", "admin@example.com", "cat123", auth.RoleAdministrator, true)
	target := repo.addUser("reader", "reader@example.com", "cat123", auth.RoleUser, false)

	bindAccount := func(ctx *router.MockContext, role string) {
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			p := args.Get(0).(*auth.AccountPayload)
			p.Email = "reader@example.com"
			p.Username = "reader"
			p.Role = role
			p.Confirmed = true
		}).Return(nil)
	}

	t.Run("administrator promotes", func(t *testing.T) {
		ctx := newControllerContext(admin)
		ctx.ParamsM["id"] = target.ID.String()
		bindAccount(ctx, auth.RoleModerator)

		var payload map[string]any
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]any)
		}).Return(nil)

		require.NoError(t, controller.UpdateAccount(ctx))
		assert.Equal(t, target, payload["user"])
		assert.Equal(t, auth.RoleModerator, target.Role.Name)
		assert.True(t, target.Confirmed)
	})

	t.Run("others are forbidden", func(t *testing.T) {
		ctx := newControllerContext(target)
		ctx.ParamsM["id"] = target.ID.String()
		bindAccount(ctx, auth.RoleAdministrator)
		body := expectJSON(ctx, http.StatusForbidden)

		require.NoError(t, controller.UpdateAccount(ctx))
		assert.Equal(t, auth.TextCodeForbidden, body.TextCode)
		assert.Equal(t, auth.RoleModerator, target.Role.Name)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		ctx := newControllerContext(admin)
		ctx.ParamsM["id"] = "not-a-uuid"
		body := expectJSON(ctx, http.StatusNotFound)

		require.NoError(t, controller.UpdateAccount(ctx))
		assert.Equal(t, auth.TextCodeNotFound, body.TextCode)
	})
}
