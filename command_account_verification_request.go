package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestConfirmationMessage struct {
	UserID     uuid.UUID
	OnResponse func(resp *RequestConfirmationResponse)
}

func (e RequestConfirmationMessage) Type() string { return "user.confirmation.request" }

type RequestConfirmationResponse struct {
	AlreadyConfirmed bool
	Token            string
}

// RequestConfirmationHandler mails a fresh confirm token to an unconfirmed
// account. Previously sent tokens stay valid until they expire.
type RequestConfirmationHandler struct {
	repo   RepositoryManager
	tokens *TokenAuthority
	mailer Mailer
	logger Logger
}

func NewRequestConfirmationHandler(repo RepositoryManager, tokens *TokenAuthority) *RequestConfirmationHandler {
	return &RequestConfirmationHandler{
		repo:   repo,
		tokens: tokens,
		mailer: NewLogMailer(""),
		logger: defLogger{},
	}
}

func (h *RequestConfirmationHandler) WithMailer(m Mailer) *RequestConfirmationHandler {
	h.mailer = normalizeMailer(m)
	return h
}

func (h *RequestConfirmationHandler) WithLogger(logger Logger) *RequestConfirmationHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RequestConfirmationHandler) Execute(ctx context.Context, event RequestConfirmationMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during confirmation request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestConfirmationHandler) execute(ctx context.Context, event RequestConfirmationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	user, err := h.repo.Users().FindByID(ctx, event.UserID)
	if err != nil {
		return lookupError(err, "failed to load account")
	}

	resp := &RequestConfirmationResponse{}

	if user.Confirmed {
		resp.AlreadyConfirmed = true
	} else {
		token, err := h.tokens.MintConfirmationToken(user)
		if err != nil {
			return txError(err, "failed to mint confirmation token")
		}
		resp.Token = token

		if err := sendConfirmation(ctx, h.mailer, user, token); err != nil {
			h.logger.Error("failed to send confirmation email to %s: %v", user.Email, err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

type ConfirmAccountMessage struct {
	UserID     uuid.UUID
	Token      string
	OnResponse func(resp *ConfirmAccountResponse)
}

func (e ConfirmAccountMessage) Type() string { return "user.confirm" }

type ConfirmAccountResponse struct {
	User             *User
	AlreadyConfirmed bool
}

// ConfirmAccountHandler marks the current account confirmed when the token
// was minted for it.
type ConfirmAccountHandler struct {
	repo     RepositoryManager
	tokens   *TokenAuthority
	activity ActivitySink
	logger   Logger
}

func NewConfirmAccountHandler(repo RepositoryManager, tokens *TokenAuthority) *ConfirmAccountHandler {
	return &ConfirmAccountHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ConfirmAccountHandler) WithActivitySink(sink ActivitySink) *ConfirmAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmAccountHandler) WithLogger(logger Logger) *ConfirmAccountHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *ConfirmAccountHandler) Execute(ctx context.Context, event ConfirmAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during account confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmAccountHandler) execute(ctx context.Context, event ConfirmAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	resp := &ConfirmAccountResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return lookupError(err, "failed to load account")
		}
		resp.User = user

		if user.Confirmed {
			resp.AlreadyConfirmed = true
			return nil
		}

		subjectID, ok := h.tokens.VerifyConfirmationToken(event.Token)
		if !ok || subjectID != user.SubjectID() {
			return ErrTokenRejected
		}

		user.Confirmed = true
		if _, err := h.repo.Users().SaveTx(ctx, tx, user); err != nil {
			return txError(err, "failed to confirm account")
		}

		return nil
	})

	if err != nil {
		return txError(err, "account confirmation transaction failed")
	}

	if !resp.AlreadyConfirmed {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventAccountConfirmed,
			UserID:    resp.User.SubjectID(),
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
