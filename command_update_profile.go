package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AboutMeMaxLength bounds the free text shown on a profile
const AboutMeMaxLength = 1024

type UpdateProfileMessage struct {
	UserID  uuid.UUID `json:"-"`
	AboutMe string    `json:"about_me"`

	OnResponse func(resp *UpdateProfileResponse) `json:"-"`
}

func (e UpdateProfileMessage) Type() string { return "user.profile.update" }

func (e UpdateProfileMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AboutMe, validation.Length(0, AboutMeMaxLength)),
	)
}

type UpdateProfileResponse struct {
	User *User
}

// UpdateProfileHandler lets an account edit its own profile text
type UpdateProfileHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	event.AboutMe = strings.TrimSpace(event.AboutMe)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid profile payload")
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

		user.AboutMe = event.AboutMe

		if _, err := h.repo.Users().SaveTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save profile")
		}
		return nil
	})

	if err != nil {
		return txError(err, "failed to update profile")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    user.SubjectID(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&UpdateProfileResponse{User: user})
	}

	return nil
}

// UpdateAccountMessage replaces the administrative fields of an account.
// Every field is written, callers send the full record.
type UpdateAccountMessage struct {
	Actor     Subject   `json:"-"`
	UserID    uuid.UUID `json:"-"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Confirmed bool      `json:"confirmed"`
	AboutMe   string    `json:"about_me"`

	OnResponse func(resp *UpdateAccountResponse) `json:"-"`
}

func (e UpdateAccountMessage) Type() string { return "user.account.update" }

func (e UpdateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(1, 64), is.Email),
		validation.Field(&e.Username, usernameRules()...),
		validation.Field(&e.Role, validation.Required),
		validation.Field(&e.AboutMe, validation.Length(0, AboutMeMaxLength)),
	)
}

type UpdateAccountResponse struct {
	User *User
}

// UpdateAccountHandler is the administrator's edit of another account:
// email, username, role, confirmation and profile text.
type UpdateAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewUpdateAccountHandler(repo RepositoryManager) *UpdateAccountHandler {
	return &UpdateAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *UpdateAccountHandler) WithActivitySink(sink ActivitySink) *UpdateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateAccountHandler) WithLogger(logger Logger) *UpdateAccountHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateAccountHandler) Execute(ctx context.Context, event UpdateAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during account update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateAccountHandler) execute(ctx context.Context, event UpdateAccountMessage) error {
	if err := Authorize(event.Actor, PermissionAdmin); err != nil {
		return err
	}

	event.Email = NormalizeEmail(event.Email)
	event.AboutMe = strings.TrimSpace(event.AboutMe)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid account payload")
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

		if err := ensureEmailAvailableTx(ctx, tx, h.repo.Users(), event.Email, user.ID); err != nil {
			return err
		}

		if err := ensureUsernameAvailableTx(ctx, tx, h.repo.Users(), event.Username, user.ID); err != nil {
			return err
		}

		role, err := h.repo.Roles().FindByNameTx(ctx, tx, event.Role)
		if err != nil {
			if IsRecordNotFound(err) {
				return goerrors.New("unknown role", goerrors.CategoryBadInput).
					WithCode(goerrors.CodeBadRequest).
					WithTextCode("UNKNOWN_ROLE").
					WithMetadata(map[string]any{"role": event.Role})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role")
		}

		user.Email = event.Email
		user.Username = event.Username
		user.Confirmed = event.Confirmed
		user.AboutMe = event.AboutMe
		user.SetRole(role)

		if _, err := h.repo.Users().SaveTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save account")
		}
		return nil
	})

	if err != nil {
		return txError(err, "failed to update account")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountUpdated,
		UserID:    user.SubjectID(),
		Metadata: map[string]any{
			"actor_id":  event.Actor.SubjectID(),
			"role":      roleName(user.Role),
			"confirmed": user.Confirmed,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&UpdateAccountResponse{User: user})
	}

	return nil
}

func ensureUsernameAvailableTx(ctx context.Context, tx bun.IDB, users UserStore, username string, owner uuid.UUID) error {
	existing, err := users.FindByUsernameTx(ctx, tx, username)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username")
	}

	if existing.ID != owner {
		return ErrUsernameTaken
	}
	return nil
}
