package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	AboutMe         string `json:"about_me"`
	Role            string `json:"-"`
	UseHashid       bool   `json:"-"`

	OnResponse func(resp *RegisterUserResponse) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will validate the message
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(1, 64), is.Email),
		validation.Field(&e.Username, usernameRules()...),
		validation.Field(&e.Password, passwordRules()...),
		validation.Field(&e.ConfirmPassword, confirmPasswordRules(e.Password)...),
	)
}

type RegisterUserResponse struct {
	User              *User
	ConfirmationToken string
}

type RegisterUserHandler struct {
	repo        RepositoryManager
	tokens      *TokenAuthority
	config      Config
	mailer      Mailer
	featureGate gate.FeatureGate
	activity    ActivitySink
	logger      Logger
}

func NewRegisterUserHandler(repo RepositoryManager, tokens *TokenAuthority, cfg Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		tokens:   tokens,
		config:   cfg,
		mailer:   NewLogMailer(""),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *RegisterUserHandler) WithMailer(m Mailer) *RegisterUserHandler {
	h.mailer = normalizeMailer(m)
	return h
}

// WithFeatureGate adds a runtime signup gate on top of the config flag
func (h *RegisterUserHandler) WithFeatureGate(fg gate.FeatureGate) *RegisterUserHandler {
	h.featureGate = fg
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if h.config != nil && !h.config.GetRegistrationEnabled() {
		return ErrRegistrationDisabled
	}

	if h.featureGate != nil {
		if err := requireFeatureGate(ctx, h.featureGate, gate.FeatureUsersSignup, ErrRegistrationDisabled); err != nil {
			return err
		}
	}

	event.Email = NormalizeEmail(event.Email)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid registration payload")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	user := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().FindByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailTaken
		} else if !IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
		}

		if _, err := h.repo.Users().FindByUsernameTx(ctx, tx, event.Username); err == nil {
			return ErrUsernameTaken
		} else if !IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username")
		}

		if err := user.SetPassword(event.Password); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		user.Email = event.Email
		user.Username = event.Username
		user.AboutMe = event.AboutMe
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if err := ResolveRoleTx(ctx, tx, h.repo.Roles(), h.adminEmail(), user, event.Role); err != nil {
			return err
		}

		created, err := h.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}
		if created != nil {
			created.Role = user.Role
			user = created
		}

		return nil
	})

	if err != nil {
		return txError(err, "user registration transaction failed")
	}

	resp := &RegisterUserResponse{User: user}

	token, err := h.tokens.MintConfirmationToken(user)
	if err != nil {
		return txError(err, "failed to mint confirmation token")
	}
	resp.ConfirmationToken = token

	if err := sendConfirmation(ctx, h.mailer, user, token); err != nil {
		h.logger.Error("failed to send confirmation email to %s: %v", user.Email, err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    user.SubjectID(),
		Metadata: map[string]any{
			"username": user.Username,
			"role":     roleName(user.Role),
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) adminEmail() string {
	if h.config == nil {
		return ""
	}
	return h.config.GetAdminEmail()
}

func sendConfirmation(ctx context.Context, mailer Mailer, user *User, token string) error {
	return normalizeMailer(mailer).Send(ctx, MailMessage{
		To:       user.Email,
		Subject:  "Confirm Your Account",
		Template: MailTemplateConfirm,
		Data: map[string]any{
			"username": user.Username,
			"token":    token,
		},
	})
}

func roleName(role *Role) string {
	if role == nil {
		return ""
	}
	return role.Name
}
