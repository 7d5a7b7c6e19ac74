package auth

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsUser(roleName string, perms ...Permission) *User {
	role := NewRole(roleName)
	for _, p := range perms {
		role.AddPermission(p)
	}
	user := &User{ID: uuid.New(), Username: "ws-" + roleName}
	return user.SetRole(role)
}

func TestWSTokenValidator_Validate(t *testing.T) {
	user := wsUser("User", PermissionComment)

	validator := NewWSTokenValidator(SubjectResolverFunc(func(ctx context.Context, token string) (*User, error) {
		if token != "good" {
			return nil, ErrTokenRejected
		}
		return user, nil
	}))

	t.Run("valid token", func(t *testing.T) {
		claims, err := validator.Validate("good")
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID())
		assert.Equal(t, user.ID.String(), claims.Subject())
		assert.Equal(t, "User", claims.Role())
	})

	t.Run("rejected token", func(t *testing.T) {
		claims, err := validator.Validate("bad")
		assert.Nil(t, claims)
		assert.True(t, IsTokenRejected(err))
	})

	t.Run("missing resolver", func(t *testing.T) {
		_, err := NewWSTokenValidator(nil).Validate("good")
		assert.True(t, IsTokenRejected(err))
	})
}

func TestWSAuthClaimsAdapter(t *testing.T) {
	t.Run("regular user", func(t *testing.T) {
		claims := &WSAuthClaimsAdapter{user: wsUser("User", PermissionComment)}

		assert.True(t, claims.CanRead(ResourcePosts))
		assert.True(t, claims.CanCreate(ResourceComments))
		assert.False(t, claims.CanCreate(ResourcePosts))
		assert.False(t, claims.CanEdit(ResourceComments))
		assert.False(t, claims.CanDelete(ResourcePosts))
		assert.True(t, claims.HasRole("user"))
		assert.True(t, claims.IsAtLeast("User"))
		assert.False(t, claims.IsAtLeast("Moderator"))
	})

	t.Run("moderator", func(t *testing.T) {
		claims := &WSAuthClaimsAdapter{user: wsUser("Moderator",
			PermissionComment, PermissionWrite, PermissionModerate)}

		assert.True(t, claims.CanCreate(ResourcePosts))
		assert.True(t, claims.CanEdit(ResourceComments))
		assert.True(t, claims.CanDelete(ResourceComments))
		assert.False(t, claims.CanEdit(ResourcePosts))
		assert.True(t, claims.IsAtLeast("Moderator"))
		assert.False(t, claims.IsAtLeast("Administrator"))
	})

	t.Run("administrator", func(t *testing.T) {
		claims := &WSAuthClaimsAdapter{user: wsUser("Administrator",
			PermissionComment, PermissionWrite, PermissionModerate, PermissionAdmin)}

		assert.True(t, claims.CanEdit(ResourcePosts))
		assert.True(t, claims.CanCreate(ResourceUsers))
		assert.True(t, claims.IsAtLeast("Administrator"))
		assert.False(t, claims.IsAtLeast("Owner"))
		assert.False(t, claims.CanEdit("unknown"))
	})
}

func TestWSUserFromContext(t *testing.T) {
	t.Run("with adapter", func(t *testing.T) {
		user := wsUser("User", PermissionComment)
		adapter := &WSAuthClaimsAdapter{user: user}
		ctx := context.WithValue(context.Background(), router.WSAuthContextKey{}, adapter)

		got, ok := WSUserFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("without claims", func(t *testing.T) {
		got, ok := WSUserFromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}
