package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Password, passwordRules()...),
		validation.Field(&e.ConfirmPassword, confirmPasswordRules(e.Password)...),
	)
}

type FinalizePasswordResetHandler struct {
	repo        RepositoryManager
	tokens      *TokenAuthority
	featureGate gate.FeatureGate
	activity    ActivitySink
	logger      Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *TokenAuthority) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithFeatureGate enables the password reset gate, finalize has its own
// override key so in-flight resets can complete.
func (h *FinalizePasswordResetHandler) WithFeatureGate(fg gate.FeatureGate) *FinalizePasswordResetHandler {
	h.featureGate = fg
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during password reset finalization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if h.featureGate != nil {
		if err := requirePasswordResetGate(ctx, h.featureGate, true); err != nil {
			return err
		}
	}

	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password reset payload")
	}

	grant, ok := h.tokens.Verify(event.Token, ClaimReset)
	if !ok {
		return ErrTokenRejected
	}

	userID, ok := grant.SubjectUUID()
	if !ok {
		return ErrTokenRejected
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, userID)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrTokenRejected
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})

	if err != nil {
		return txError(err, "failed to finalize password reset")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		UserID:    grant.SubjectID,
		Metadata: map[string]any{
			"token_id": grant.TokenID,
		},
	})

	return nil
}
