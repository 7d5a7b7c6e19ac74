package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type IssueAuthTokenMessage struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	TTL      time.Duration `json:"-"`

	OnResponse func(resp *IssueAuthTokenResponse) `json:"-"`
}

func (e IssueAuthTokenMessage) Type() string { return "user.token.issue" }

func (e IssueAuthTokenMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
}

type IssueAuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Confirmed bool      `json:"confirmed"`
	User      *User     `json:"-"`
}

// IssueAuthTokenHandler exchanges credentials for an API auth token.
// Unconfirmed accounts get a token too, so they can reach the confirm
// routes, the guard keeps them out of everything else.
type IssueAuthTokenHandler struct {
	repo     RepositoryManager
	tokens   *TokenAuthority
	activity ActivitySink
	logger   Logger
}

func NewIssueAuthTokenHandler(repo RepositoryManager, tokens *TokenAuthority) *IssueAuthTokenHandler {
	return &IssueAuthTokenHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *IssueAuthTokenHandler) WithActivitySink(sink ActivitySink) *IssueAuthTokenHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *IssueAuthTokenHandler) WithLogger(logger Logger) *IssueAuthTokenHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *IssueAuthTokenHandler) Execute(ctx context.Context, event IssueAuthTokenMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during token issue")
	default:
		return h.execute(ctx, event)
	}
}

func (h *IssueAuthTokenHandler) execute(ctx context.Context, event IssueAuthTokenMessage) error {
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid token request")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	user, err := h.repo.Users().FindByEmail(ctx, event.Email)
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrInvalidCredentials
		}
		return txError(err, "failed to load account")
	}

	if !user.VerifyPassword(event.Password) {
		return ErrInvalidCredentials
	}

	token, expiresAt, err := h.tokens.MintAuthToken(user, event.TTL)
	if err != nil {
		return txError(err, "failed to mint auth token")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventTokenIssued,
		UserID:    user.SubjectID(),
		Metadata: map[string]any{
			"expires_at": expiresAt,
			"confirmed":  user.Confirmed,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&IssueAuthTokenResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			Confirmed: user.Confirmed,
			User:      user,
		})
	}

	return nil
}
