package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-featuregate/gate"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email"`

	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(1, 64), is.Email),
	)
}

// InitializePasswordResetResponse does not tell callers whether the address
// exists. Sent is for tests and logs only.
type InitializePasswordResetResponse struct {
	Sent    bool
	Success bool
}

type InitializePasswordResetHandler struct {
	repo        RepositoryManager
	tokens      *TokenAuthority
	mailer      Mailer
	featureGate gate.FeatureGate
	logger      Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *TokenAuthority) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		tokens: tokens,
		mailer: NewLogMailer(""),
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithMailer(m Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(m)
	return h
}

func (h *InitializePasswordResetHandler) WithFeatureGate(fg gate.FeatureGate) *InitializePasswordResetHandler {
	h.featureGate = fg
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during password reset initialization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if h.featureGate != nil {
		if err := requirePasswordResetGate(ctx, h.featureGate, false); err != nil {
			return err
		}
	}

	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	resp := &InitializePasswordResetResponse{Success: true}

	user, err := h.repo.Users().FindByEmail(ctx, event.Email)
	switch {
	case err == nil:
		token, err := h.tokens.MintResetToken(user)
		if err != nil {
			return txError(err, "failed to mint reset token")
		}

		err = h.mailer.Send(ctx, MailMessage{
			To:       user.Email,
			Subject:  "Reset Your Password",
			Template: MailTemplateResetPass,
			Data: map[string]any{
				"username": user.Username,
				"token":    token,
			},
		})
		if err != nil {
			h.logger.Error("failed to send reset email to %s: %v", user.Email, err)
		} else {
			resp.Sent = true
		}
	case IsRecordNotFound(err):
		h.logger.Debug("password reset requested for unknown email")
	default:
		return txError(err, "failed to initialize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
