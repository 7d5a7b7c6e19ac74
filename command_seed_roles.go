package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type SeedRolesMessage struct {
	OnResponse func(resp *SeedRolesResponse)
}

func (e SeedRolesMessage) Type() string { return "roles.seed" }

type SeedRolesResponse struct {
	Roles []*Role
}

// SeedRolesHandler upserts the default role table. It runs on every start,
// running it twice leaves the same bitmasks and a single default role.
type SeedRolesHandler struct {
	repo     RepositoryManager
	roles    []RoleDefinition
	activity ActivitySink
	logger   Logger
}

func NewSeedRolesHandler(repo RepositoryManager) *SeedRolesHandler {
	return &SeedRolesHandler{
		repo:     repo,
		roles:    DefaultRoles(),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *SeedRolesHandler) WithActivitySink(sink ActivitySink) *SeedRolesHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *SeedRolesHandler) WithLogger(logger Logger) *SeedRolesHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *SeedRolesHandler) Execute(ctx context.Context, event SeedRolesMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx, "context cancelled during role seeding")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SeedRolesHandler) execute(ctx context.Context, event SeedRolesMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	resp := &SeedRolesResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, def := range h.roles {
			role, err := h.repo.Roles().FindByNameTx(ctx, tx, def.Name)
			if err != nil {
				if !IsRecordNotFound(err) {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role").
						WithMetadata(map[string]any{"role": def.Name})
				}
				role = NewRole(def.Name)
			}

			role.ResetPermissions()
			for _, perm := range def.Permissions {
				role.AddPermission(perm)
			}
			role.IsDefault = role.Name == DefaultRoleName

			if role, err = h.repo.Roles().SaveTx(ctx, tx, role); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save role").
					WithMetadata(map[string]any{"role": def.Name})
			}

			resp.Roles = append(resp.Roles, role)
		}

		existing, err := h.repo.Roles().ListTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list roles")
		}

		for _, role := range existing {
			if !role.IsDefault || role.Name == DefaultRoleName {
				continue
			}
			role.IsDefault = false
			if _, err := h.repo.Roles().SaveTx(ctx, tx, role); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear default role").
					WithMetadata(map[string]any{"role": role.Name})
			}
		}

		return nil
	})

	if err != nil {
		return txError(err, "role seeding transaction failed")
	}

	for _, role := range resp.Roles {
		h.logger.Debug("seeded role %s", role)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRolesSeeded,
		Metadata:  map[string]any{"roles": len(resp.Roles)},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// ResolveRoleTx binds the role a new account starts with: an explicit role
// name wins, the configured administrator email gets Administrator and
// everyone else gets the default role.
func ResolveRoleTx(ctx context.Context, tx bun.IDB, roles RoleStore, adminEmail string, user *User, roleName string) error {
	if user.Role != nil {
		user.SetRole(user.Role)
		return nil
	}

	var (
		role *Role
		err  error
	)

	switch {
	case roleName != "":
		role, err = roles.FindByNameTx(ctx, tx, roleName)
	case IsAdminEmail(user.Email, adminEmail):
		role, err = roles.FindByNameTx(ctx, tx, RoleAdministrator)
	default:
		role, err = roles.FindDefaultTx(ctx, tx)
	}

	if err != nil {
		if IsRecordNotFound(err) {
			return goerrors.New("role not found, were roles seeded?", goerrors.CategoryInternal).
				WithMetadata(map[string]any{"role": roleName})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve role")
	}

	user.SetRole(role)
	return nil
}
