package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterAccountRoutes mounts the JSON account endpoints. Routes that act
// on the current account need the subject middleware upstream.
func RegisterAccountRoutes[T any](app router.Router[T], repo RepositoryManager, tokens *TokenAuthority, cfg Config, opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(repo, tokens, cfg, opts...)
	authenticated := AuthenticationRequired(controller.ErrorHandler)
	confirmed := ConfirmationRequired(controller.ErrorHandler)

	app.Post(controller.Routes.Register, controller.Register).
		SetName("account.register")

	app.Post(controller.Routes.Confirm, controller.RequestConfirmation, authenticated).
		SetName("account.confirm-request")
	app.Get(controller.Routes.Confirm+"/:token", controller.Confirm, authenticated).
		SetName("account.confirm")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetRequest).
		SetName("account.reset-request")
	app.Post(controller.Routes.PasswordReset+"/:token", controller.PasswordResetFinalize).
		SetName("account.reset")

	app.Post(controller.Routes.ChangePassword, controller.ChangePassword, confirmed).
		SetName("account.change-password")

	app.Post(controller.Routes.ChangeEmail, controller.ChangeEmailRequest, confirmed).
		SetName("account.change-email-request")
	app.Get(controller.Routes.ChangeEmail+"/:token", controller.ChangeEmail, confirmed).
		SetName("account.change-email")

	app.Post(controller.Routes.Profile, controller.UpdateProfile, confirmed).
		SetName("account.profile")
	app.Post(controller.Routes.Accounts+"/:id", controller.UpdateAccount, confirmed).
		SetName("api.users.update")

	app.Post(controller.Routes.Tokens, controller.IssueToken).
		SetName("api.tokens.create")

	return controller
}

type AccountControllerRoutes struct {
	Register       string
	Confirm        string
	PasswordReset  string
	ChangePassword string
	ChangeEmail    string
	Profile        string
	Accounts       string
	Tokens         string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	SubjectKey   string
	Routes       *AccountControllerRoutes
	ErrorHandler func(router.Context, error) error

	repo        RepositoryManager
	tokens      *TokenAuthority
	cfg         Config
	mailer      Mailer
	featureGate gate.FeatureGate
	activity    ActivitySink

	register       *RegisterUserHandler
	requestConfirm *RequestConfirmationHandler
	confirm        *ConfirmAccountHandler
	resetInit      *InitializePasswordResetHandler
	resetFinalize  *FinalizePasswordResetHandler
	changePassword *ChangePasswordHandler
	requestEmail   *RequestEmailChangeHandler
	changeEmail    *FinalizeEmailChangeHandler
	issueToken     *IssueAuthTokenHandler
	profile        *UpdateProfileHandler
	account        *UpdateAccountHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerMailer(m Mailer) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.mailer = normalizeMailer(m)
		return c
	}
}

func WithControllerFeatureGate(fg gate.FeatureGate) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.featureGate = fg
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func WithControllerSubjectKey(key string) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.SubjectKey = key
		return c
	}
}

func WithControllerErrorHandler(handler func(router.Context, error) error) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.ErrorHandler = handler
		return c
	}
}

func NewAccountController(repo RepositoryManager, tokens *TokenAuthority, cfg Config, opts ...AccountControllerOption) *AccountController {
	if repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if tokens == nil {
		panic("Missing TokenAuthority in account controller...")
	}

	c := &AccountController{
		Logger:     defLogger{},
		SubjectKey: DefaultSubjectKey,
		Routes: &AccountControllerRoutes{
			Register:       "/auth/register",
			Confirm:        "/auth/confirm",
			PasswordReset:  "/auth/reset",
			ChangePassword: "/auth/change-password",
			ChangeEmail:    "/auth/change-email",
			Profile:        "/auth/profile",
			Accounts:       "/api/v1/users",
			Tokens:         "/api/v1/tokens",
		},
		repo:     repo,
		tokens:   tokens,
		cfg:      cfg,
		mailer:   NewLogMailer(""),
		activity: noopActivitySink{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = JSONErrorHandler(c.Logger, c.Debug)
	}

	c.register = NewRegisterUserHandler(repo, tokens, cfg).
		WithMailer(c.mailer).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)
	if c.featureGate != nil {
		c.register.WithFeatureGate(c.featureGate)
	}

	c.requestConfirm = NewRequestConfirmationHandler(repo, tokens).
		WithMailer(c.mailer).
		WithLogger(c.Logger)

	c.confirm = NewConfirmAccountHandler(repo, tokens).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	c.resetInit = NewInitializePasswordResetHandler(repo, tokens).
		WithMailer(c.mailer).
		WithLogger(c.Logger)

	c.resetFinalize = NewFinalizePasswordResetHandler(repo, tokens).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	if c.featureGate != nil {
		c.resetInit.WithFeatureGate(c.featureGate)
		c.resetFinalize.WithFeatureGate(c.featureGate)
	}

	c.changePassword = NewChangePasswordHandler(repo).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	c.requestEmail = NewRequestEmailChangeHandler(repo, tokens).
		WithMailer(c.mailer).
		WithLogger(c.Logger)

	c.changeEmail = NewFinalizeEmailChangeHandler(repo, tokens).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	c.issueToken = NewIssueAuthTokenHandler(repo, tokens).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	c.profile = NewUpdateProfileHandler(repo).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	c.account = NewUpdateAccountHandler(repo).
		WithActivitySink(c.activity).
		WithLogger(c.Logger)

	return c
}

type RegisterPayload struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	AboutMe         string `form:"about_me" json:"about_me"`
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	if a.Debug {
		a.Logger.Debug("register payload for %s", payload.Email)
	}

	var resp *RegisterUserResponse
	err := a.register.Execute(ctx.Context(), RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		AboutMe:         payload.AboutMe,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"user": resp.User,
	})
}

func (a *AccountController) RequestConfirmation(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var resp *RequestConfirmationResponse
	err = a.requestConfirm.Execute(ctx.Context(), RequestConfirmationMessage{
		UserID: user.ID,
		OnResponse: func(r *RequestConfirmationResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"sent":              resp != nil && !resp.AlreadyConfirmed,
		"already_confirmed": resp != nil && resp.AlreadyConfirmed,
	})
}

func (a *AccountController) Confirm(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var resp *ConfirmAccountResponse
	err = a.confirm.Execute(ctx.Context(), ConfirmAccountMessage{
		UserID: user.ID,
		Token:  ctx.Param("token", ""),
		OnResponse: func(r *ConfirmAccountResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"confirmed":         true,
		"already_confirmed": resp != nil && resp.AlreadyConfirmed,
	})
}

type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *AccountController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	err := a.resetInit.Execute(ctx.Context(), InitializePasswordResetMessage{
		Email: payload.Email,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusAccepted, map[string]any{
		"message": "if the address is registered a reset link was sent",
	})
}

type PasswordResetPayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (a *AccountController) PasswordResetFinalize(ctx router.Context) error {
	payload := new(PasswordResetPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	err := a.resetFinalize.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Token:           ctx.Param("token", ""),
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"reset": true,
	})
}

type ChangePasswordPayload struct {
	OldPassword     string `form:"old_password" json:"old_password"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (a *AccountController) ChangePassword(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ChangePasswordPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	err = a.changePassword.Execute(ctx.Context(), ChangePasswordMessage{
		UserID:      user.ID,
		OldPassword:     payload.OldPassword,
		NewPassword:     payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"changed": true,
	})
}

type ChangeEmailPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *AccountController) ChangeEmailRequest(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ChangeEmailPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	err = a.requestEmail.Execute(ctx.Context(), RequestEmailChangeMessage{
		UserID:   user.ID,
		NewEmail: payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusAccepted, map[string]any{
		"message": "a confirmation link was sent to the new address",
	})
}

func (a *AccountController) ChangeEmail(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var resp *FinalizeEmailChangeResponse
	err = a.changeEmail.Execute(ctx.Context(), FinalizeEmailChangeMessage{
		UserID: user.ID,
		Token:  ctx.Param("token", ""),
		OnResponse: func(r *FinalizeEmailChangeResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"email": resp.User.Email,
	})
}

type TokenRequestPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *AccountController) IssueToken(ctx router.Context) error {
	payload := new(TokenRequestPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	var resp *IssueAuthTokenResponse
	err := a.issueToken.Execute(ctx.Context(), IssueAuthTokenMessage{
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(r *IssueAuthTokenResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("issued api token for %s, expires %s", resp.User.Email, resp.ExpiresAt.Format(time.RFC3339))
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"token":      resp.Token,
		"expires_in": int64(resp.ExpiresAt.Sub(a.tokens.clock.Now()) / time.Second),
		"expires_at": resp.ExpiresAt,
	})
}

type ProfilePayload struct {
	AboutMe string `form:"about_me" json:"about_me"`
}

func (a *AccountController) UpdateProfile(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ProfilePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	var resp *UpdateProfileResponse
	err = a.profile.Execute(ctx.Context(), UpdateProfileMessage{
		UserID:  user.ID,
		AboutMe: payload.AboutMe,
		OnResponse: func(r *UpdateProfileResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": resp.User,
	})
}

type AccountPayload struct {
	Email     string `form:"email" json:"email"`
	Username  string `form:"username" json:"username"`
	Role      string `form:"role" json:"role"`
	Confirmed bool   `form:"confirmed" json:"confirmed"`
	AboutMe   string `form:"about_me" json:"about_me"`
}

// UpdateAccount is the administrator edit of the account named by :id
func (a *AccountController) UpdateAccount(ctx router.Context) error {
	subject, _ := SubjectFromRouter(ctx, a.SubjectKey)

	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, ErrNotFound)
	}

	payload := new(AccountPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, bindError(err))
	}

	var resp *UpdateAccountResponse
	err = a.account.Execute(ctx.Context(), UpdateAccountMessage{
		Actor:     subject,
		UserID:    id,
		Email:     payload.Email,
		Username:  payload.Username,
		Role:      payload.Role,
		Confirmed: payload.Confirmed,
		AboutMe:   payload.AboutMe,
		OnResponse: func(r *UpdateAccountResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": resp.User,
	})
}

func (a *AccountController) currentUser(ctx router.Context) (*User, error) {
	subject, _ := SubjectFromRouter(ctx, a.SubjectKey)
	user, ok := subject.(*User)
	if !ok || user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
