package auth

import (
	"strings"
)

// Permission is a capability flag. Values are powers of two and can be
// combined with | into a permission set, which is also a Permission.
type Permission uint32

const (
	// PermissionLogin is checked against anonymous visitors to decide if
	// they may register an account.
	PermissionLogin Permission = 1 << iota
	// PermissionComment allows posting comments
	PermissionComment
	// PermissionWrite allows authoring posts
	PermissionWrite
	// PermissionModerate allows enabling/disabling comments
	PermissionModerate
	// PermissionAdmin allows managing users and any post.
	// It does NOT imply the other flags.
	PermissionAdmin

	// PermissionNone is the empty set
	PermissionNone Permission = 0
)

const permissionAll = PermissionLogin | PermissionComment | PermissionWrite | PermissionModerate | PermissionAdmin

var permissionNames = []struct {
	perm Permission
	name string
}{
	{PermissionLogin, "login"},
	{PermissionComment, "comment"},
	{PermissionWrite, "write"},
	{PermissionModerate, "moderate"},
	{PermissionAdmin, "admin"},
}

// HasPermission reports whether mask contains every flag in perm.
func HasPermission(mask, perm Permission) bool {
	return mask&perm == perm
}

// Has reports whether p contains every flag in perm.
func (p Permission) Has(perm Permission) bool {
	return HasPermission(p, perm)
}

// With returns the union of p and perm
func (p Permission) With(perm Permission) Permission {
	return p | perm
}

// Without returns p with the flags in perm cleared
func (p Permission) Without(perm Permission) Permission {
	return p &^ perm
}

// IsValid reports whether p only holds defined flags.
func (p Permission) IsValid() bool {
	return p&^permissionAll == 0
}

// Flags splits p into its individual flags, in ascending order.
func (p Permission) Flags() []Permission {
	out := make([]Permission, 0, len(permissionNames))
	for _, n := range permissionNames {
		if p.Has(n.perm) {
			out = append(out, n.perm)
		}
	}
	return out
}

func (p Permission) String() string {
	if p == PermissionNone {
		return "none"
	}
	names := make([]string, 0, len(permissionNames))
	for _, n := range permissionNames {
		if p.Has(n.perm) {
			names = append(names, n.name)
		}
	}
	if !p.IsValid() {
		names = append(names, "unknown")
	}
	return strings.Join(names, "|")
}

// ParsePermission resolves a permission name such as "comment".
func ParsePermission(name string) (Permission, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range permissionNames {
		if n.name == name {
			return n.perm, true
		}
	}
	return PermissionNone, false
}

// AllPermissions returns every defined flag
func AllPermissions() []Permission {
	return permissionAll.Flags()
}
