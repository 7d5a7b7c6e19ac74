package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestEmailChangeMessage struct {
	UserID   uuid.UUID `json:"-"`
	NewEmail string    `json:"email"`
	Password string    `json:"password"`

	OnResponse func(resp *RequestEmailChangeResponse) `json:"-"`
}

func (e RequestEmailChangeMessage) Type() string { return "user.email.change_request" }

func (e RequestEmailChangeMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.NewEmail, validation.Required, validation.Length(1, 64), is.Email),
		validation.Field(&e.Password, validation.Required),
	)
}

type RequestEmailChangeResponse struct {
	Token string
}

// RequestEmailChangeHandler mails a change_email token to the proposed
// address, the account keeps its current email until the link is followed.
type RequestEmailChangeHandler struct {
	repo   RepositoryManager
	tokens *TokenAuthority
	mailer Mailer
	logger Logger
}

func NewRequestEmailChangeHandler(repo RepositoryManager, tokens *TokenAuthority) *RequestEmailChangeHandler {
	return &RequestEmailChangeHandler{
		repo:   repo,
		tokens: tokens,
		mailer: NewLogMailer(""),
		logger: defLogger{},
	}
}

func (h *RequestEmailChangeHandler) WithMailer(m Mailer) *RequestEmailChangeHandler {
	h.mailer = normalizeMailer(m)
	return h
}

func (h *RequestEmailChangeHandler) WithLogger(logger Logger) *RequestEmailChangeHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RequestEmailChangeHandler) Execute(ctx context.Context, event RequestEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during email change request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailChangeHandler) execute(ctx context.Context, event RequestEmailChangeMessage) error {
	event.NewEmail = NormalizeEmail(event.NewEmail)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid email change payload")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return lookupError(err, "failed to load account")
		}

		if !user.VerifyPassword(event.Password) {
			return ErrInvalidCredentials
		}

		return ensureEmailAvailableTx(ctx, tx, h.repo.Users(), event.NewEmail, user.ID)
	})

	if err != nil {
		return txError(err, "failed to request email change")
	}

	token, err := h.tokens.MintChangeEmailToken(user, event.NewEmail)
	if err != nil {
		return txError(err, "failed to mint change email token")
	}

	err = h.mailer.Send(ctx, MailMessage{
		To:       event.NewEmail,
		Subject:  "Confirm your email address",
		Template: MailTemplateChangeEmail,
		Data: map[string]any{
			"username": user.Username,
			"token":    token,
		},
	})
	if err != nil {
		h.logger.Error("failed to send change email message to %s: %v", event.NewEmail, err)
	}

	if event.OnResponse != nil {
		event.OnResponse(&RequestEmailChangeResponse{Token: token})
	}

	return nil
}

type FinalizeEmailChangeMessage struct {
	UserID     uuid.UUID
	Token      string
	OnResponse func(resp *FinalizeEmailChangeResponse)
}

func (e FinalizeEmailChangeMessage) Type() string { return "user.email.change" }

type FinalizeEmailChangeResponse struct {
	User     *User
	OldEmail string
}

// FinalizeEmailChangeHandler applies a change_email token to the current
// account. Uniqueness is checked again since time passed since the request.
type FinalizeEmailChangeHandler struct {
	repo     RepositoryManager
	tokens   *TokenAuthority
	activity ActivitySink
	logger   Logger
}

func NewFinalizeEmailChangeHandler(repo RepositoryManager, tokens *TokenAuthority) *FinalizeEmailChangeHandler {
	return &FinalizeEmailChangeHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *FinalizeEmailChangeHandler) WithActivitySink(sink ActivitySink) *FinalizeEmailChangeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *FinalizeEmailChangeHandler) WithLogger(logger Logger) *FinalizeEmailChangeHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *FinalizeEmailChangeHandler) Execute(ctx context.Context, event FinalizeEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during email change")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeEmailChangeHandler) execute(ctx context.Context, event FinalizeEmailChangeMessage) error {
	change, ok := h.tokens.VerifyChangeEmailToken(event.Token)
	if !ok || change.SubjectID != event.UserID.String() {
		return ErrTokenRejected
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	resp := &FinalizeEmailChangeResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return lookupError(err, "failed to load account")
		}

		if err := ensureEmailAvailableTx(ctx, tx, h.repo.Users(), change.NewEmail, user.ID); err != nil {
			return err
		}

		resp.OldEmail = user.Email
		resp.User = user

		if !user.UpdateEmail(change.NewEmail) {
			return nil
		}

		if _, err := h.repo.Users().SaveTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update email")
		}
		return nil
	})

	if err != nil {
		return txError(err, "failed to change email")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		UserID:    event.UserID.String(),
		Metadata: map[string]any{
			"old_email": resp.OldEmail,
			"new_email": change.NewEmail,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func ensureEmailAvailableTx(ctx context.Context, tx bun.IDB, users UserStore, email string, owner uuid.UUID) error {
	existing, err := users.FindByEmailTx(ctx, tx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}

	if existing.ID != owner {
		return ErrEmailTaken
	}
	return nil
}
