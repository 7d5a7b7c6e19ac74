package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	RoleID        *uuid.UUID `bun:"role_id,type:uuid" json:"role_id,omitempty"`
	Role          *Role      `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	Confirmed     bool       `bun:"confirmed,notnull" json:"confirmed"`
	AboutMe       string     `bun:"about_me" json:"about_me,omitempty"`
	JoinedAt      *time.Time `bun:"joined_at,nullzero,default:current_timestamp" json:"joined_at,omitempty"`
	LastSeenAt    *time.Time `bun:"last_seen_at,nullzero" json:"last_seen_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SubjectID returns the string form of the user ID
func (u *User) SubjectID() string {
	if u == nil || u.ID == uuid.Nil {
		return ""
	}
	return u.ID.String()
}

// IsAnonymous is always false for a user record
func (u *User) IsAnonymous() bool { return false }

// Can checks perm against the bound role. A user without a role, or a nil
// user, holds no permissions.
func (u *User) Can(perm Permission) bool {
	if u == nil || u.Role == nil {
		return false
	}
	return u.Role.HasPermission(perm)
}

// IsConfirmed reports whether the account followed its confirmation link
func (u *User) IsConfirmed() bool {
	return u != nil && u.Confirmed
}

// IsAdministrator checks the ADMIN flag
func (u *User) IsAdministrator() bool {
	return u.Can(PermissionAdmin)
}

// SetRole binds role and keeps RoleID in sync
func (u *User) SetRole(role *Role) *User {
	u.Role = role
	if role == nil {
		u.RoleID = nil
		return u
	}
	id := role.ID
	u.RoleID = &id
	return u
}

// SetPassword stores a one way hash of password
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// VerifyPassword checks password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return ComparePasswordAndHash(password, u.PasswordHash) == nil
}

// UpdateEmail sets the email when it differs, reports whether it changed
func (u *User) UpdateEmail(email string) bool {
	email = NormalizeEmail(email)
	if u.Email == email {
		return false
	}
	u.Email = email
	return true
}

// Touch records activity at now
func (u *User) Touch(now time.Time) *User {
	u.LastSeenAt = &now
	return u
}

// NormalizeEmail trims surrounding space and lowercases the address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdminEmail compares email against the configured administrator address
func IsAdminEmail(email, adminEmail string) bool {
	adminEmail = NormalizeEmail(adminEmail)
	if adminEmail == "" {
		return false
	}
	return NormalizeEmail(email) == adminEmail
}
