package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RoleUser is the default role for new accounts
	RoleUser = "User"
	// RoleModerator can write posts and moderate comments
	RoleModerator = "Moderator"
	// RoleAdministrator holds every permission
	RoleAdministrator = "Administrator"
)

// DefaultRoleName is the role flagged as default when seeding
const DefaultRoleName = RoleUser

// RoleDefinition is an entry in the seed table
type RoleDefinition struct {
	Name        string
	Permissions []Permission
}

// DefaultRoles returns the seed table in a stable order.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RoleUser,
			Permissions: []Permission{PermissionComment},
		},
		{
			Name:        RoleModerator,
			Permissions: []Permission{PermissionComment, PermissionWrite, PermissionModerate},
		},
		{
			Name:        RoleAdministrator,
			Permissions: []Permission{PermissionComment, PermissionWrite, PermissionModerate, PermissionAdmin},
		},
	}
}

// Role groups permissions under a name
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	IsDefault     bool       `bun:"is_default,notnull" json:"is_default"`
	Permissions   Permission `bun:"permissions,notnull" json:"permissions"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewRole creates a role with an empty permission set
func NewRole(name string) *Role {
	return &Role{
		ID:   uuid.New(),
		Name: name,
	}
}

// HasPermission reports whether the role holds every flag in perm.
// A nil role holds nothing.
func (r *Role) HasPermission(perm Permission) bool {
	if r == nil {
		return false
	}
	return HasPermission(r.Permissions, perm)
}

// AddPermission grants perm, adding an already held flag is a no-op
func (r *Role) AddPermission(perm Permission) *Role {
	r.Permissions = r.Permissions.With(perm & permissionAll)
	return r
}

// RemovePermission revokes perm, removing an unheld flag is a no-op
func (r *Role) RemovePermission(perm Permission) *Role {
	r.Permissions = r.Permissions.Without(perm)
	return r
}

// ResetPermissions clears the permission set. Only seeding calls this.
func (r *Role) ResetPermissions() *Role {
	r.Permissions = PermissionNone
	return r
}

func (r *Role) String() string {
	if r == nil {
		return "<nil role>"
	}
	return r.Name + "(" + r.Permissions.String() + ")"
}
