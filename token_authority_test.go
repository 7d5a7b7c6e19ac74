package auth_test

import (
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthority_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	tokens := newTestAuthority(clock)

	for _, claim := range []auth.ClaimType{auth.ClaimConfirm, auth.ClaimReset, auth.ClaimAuth} {
		t.Run(string(claim), func(t *testing.T) {
			subject := uuid.NewString()

			token, err := tokens.Mint(subject, claim)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			grant, ok := tokens.Verify(token, claim)
			require.True(t, ok)
			assert.Equal(t, subject, grant.SubjectID)
			assert.Equal(t, claim, grant.Claim)
			assert.NotEmpty(t, grant.TokenID)
			assert.True(t, clock.Now().Equal(grant.IssuedAt))
			assert.True(t, clock.Now().Add(time.Hour).Equal(grant.ExpiresAt))
		})
	}
}

func TestTokenAuthority_ClaimIsolation(t *testing.T) {
	tokens := newTestAuthority(newFakeClock())
	user := &auth.User{ID: uuid.New()}

	confirm, err := tokens.MintConfirmationToken(user)
	require.NoError(t, err)

	reset, err := tokens.MintResetToken(user)
	require.NoError(t, err)

	_, ok := tokens.VerifyResetToken(confirm)
	assert.False(t, ok, "confirm token must not verify as reset")

	_, ok = tokens.VerifyAuthToken(confirm)
	assert.False(t, ok, "confirm token must not verify as auth")

	_, ok = tokens.VerifyConfirmationToken(reset)
	assert.False(t, ok, "reset token must not verify as confirm")

	_, ok = tokens.VerifyChangeEmailToken(reset)
	assert.False(t, ok, "reset token must not verify as change_email")

	subject, ok := tokens.VerifyConfirmationToken(confirm)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), subject)
}

func TestTokenAuthority_Expiry(t *testing.T) {
	clock := newFakeClock()
	tokens := newTestAuthority(clock)
	subject := uuid.NewString()

	token, err := tokens.Mint(subject, auth.ClaimConfirm, auth.WithTTL(time.Second))
	require.NoError(t, err)

	_, ok := tokens.Verify(token, auth.ClaimConfirm)
	require.True(t, ok)

	clock.Advance(2 * time.Second)

	_, ok = tokens.Verify(token, auth.ClaimConfirm)
	assert.False(t, ok, "token should be expired")
}

func TestTokenAuthority_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	tokens := newTestAuthority(clock)
	user := &auth.User{ID: uuid.New()}

	token, expiresAt, err := tokens.MintAuthToken(user, 0)
	require.NoError(t, err)
	assert.True(t, clock.Now().Add(tokens.DefaultTTL()).Equal(expiresAt))

	clock.Advance(59 * time.Minute)
	_, ok := tokens.VerifyAuthToken(token)
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = tokens.VerifyAuthToken(token)
	assert.False(t, ok)
}

func TestTokenAuthority_SubSecondMintKeepsFullLifetime(t *testing.T) {
	clock := newFakeClock()
	clock.Advance(900 * time.Millisecond)
	tokens := newTestAuthority(clock)

	token, expiresAt, err := tokens.MintAuthToken(&auth.User{ID: uuid.New()}, time.Second)
	require.NoError(t, err)
	assert.False(t, expiresAt.Before(clock.Now().Add(time.Second)))
	assert.True(t, expiresAt.Equal(expiresAt.Truncate(time.Second)))

	clock.Advance(200 * time.Millisecond)
	_, ok := tokens.Verify(token, auth.ClaimAuth)
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = tokens.Verify(token, auth.ClaimAuth)
	assert.False(t, ok)
}

func TestTokenAuthority_Tampering(t *testing.T) {
	clock := newFakeClock()
	tokens := newTestAuthority(clock)

	victim := uuid.NewString()
	attacker := uuid.NewString()

	victimToken, err := tokens.Mint(victim, auth.ClaimReset)
	require.NoError(t, err)
	attackerToken, err := tokens.Mint(attacker, auth.ClaimReset)
	require.NoError(t, err)

	t.Run("swapped payload", func(t *testing.T) {
		v := strings.Split(victimToken, ".")
		a := strings.Split(attackerToken, ".")
		require.Len(t, v, 3)
		require.Len(t, a, 3)

		forged := strings.Join([]string{a[0], v[1], a[2]}, ".")
		_, ok := tokens.Verify(forged, auth.ClaimReset)
		assert.False(t, ok)
	})

	t.Run("every signature character", func(t *testing.T) {
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

		parts := strings.Split(victimToken, ".")
		require.Len(t, parts, 3)
		signature := parts[2]

		for i := 0; i < len(signature); i++ {
			idx := strings.IndexByte(alphabet, signature[i])
			require.GreaterOrEqual(t, idx, 0)

			flipped := []byte(signature)
			flipped[i] = alphabet[(idx+1)%len(alphabet)]

			forged := parts[0] + "." + parts[1] + "." + string(flipped)
			_, ok := tokens.Verify(forged, auth.ClaimReset)
			assert.False(t, ok, "signature char %d (%c->%c) still verifies", i, signature[i], flipped[i])
		}

		_, ok := tokens.Verify(victimToken, auth.ClaimReset)
		assert.True(t, ok)
	})

	t.Run("foreign key", func(t *testing.T) {
		opts := testOptions()
		opts.SigningKey = "another-signing-key-9876543210"
		other := auth.NewTokenAuthority(opts, auth.WithClock(clock))

		foreign, err := other.Mint(victim, auth.ClaimReset)
		require.NoError(t, err)

		_, ok := tokens.Verify(foreign, auth.ClaimReset)
		assert.False(t, ok)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		opts := testOptions()
		opts.Issuer = "someone-else"
		other := auth.NewTokenAuthority(opts, auth.WithClock(clock))

		foreign, err := other.Mint(victim, auth.ClaimReset)
		require.NoError(t, err)

		_, ok := tokens.Verify(foreign, auth.ClaimReset)
		assert.False(t, ok)
	})
}

func TestTokenAuthority_ChangeEmail(t *testing.T) {
	tokens := newTestAuthority(newFakeClock())
	user := &auth.User{ID: uuid.New(), Email: "old@example.com"}

	token, err := tokens.MintChangeEmailToken(user, "  New@Example.com ")
	require.NoError(t, err)

	change, ok := tokens.VerifyChangeEmailToken(token)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), change.SubjectID)
	assert.Equal(t, "new@example.com", change.NewEmail)

	_, err = tokens.Mint(user.SubjectID(), auth.ClaimChangeEmail)
	assert.Error(t, err, "change_email without a new address must not mint")
}

func TestTokenAuthority_MintRejectsBadInput(t *testing.T) {
	tokens := newTestAuthority(newFakeClock())

	_, err := tokens.Mint("", auth.ClaimConfirm)
	assert.Error(t, err)

	_, err = tokens.Mint(uuid.NewString(), auth.ClaimType("login"))
	assert.Error(t, err)

	_, err = tokens.Mint(uuid.NewString(), auth.ClaimConfirm, auth.WithTTL(-time.Second))
	assert.Error(t, err)
}

func TestTokenAuthority_UniqueTokenIDs(t *testing.T) {
	tokens := newTestAuthority(newFakeClock())
	subject := uuid.NewString()

	first, err := tokens.Mint(subject, auth.ClaimAuth)
	require.NoError(t, err)
	second, err := tokens.Mint(subject, auth.ClaimAuth)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenAuthority_AudienceIsChecked(t *testing.T) {
	clock := newFakeClock()
	opts := testOptions()
	opts.Audience = []string{"blog-api"}
	tokens := auth.NewTokenAuthority(opts, auth.WithClock(clock))

	token, err := tokens.Mint(uuid.NewString(), auth.ClaimAuth)
	require.NoError(t, err)

	_, ok := tokens.Verify(token, auth.ClaimAuth)
	assert.True(t, ok)

	opts.Audience = []string{"admin-api"}
	other := auth.NewTokenAuthority(opts, auth.WithClock(clock))
	_, ok = other.Verify(token, auth.ClaimAuth)
	assert.False(t, ok)
}

func TestTokenAuthority_GarbageNeverPanics(t *testing.T) {
	tokens := newTestAuthority(newFakeClock()).WithLogger(nopLogger{})

	inputs := []string{
		"",
		"abc",
		"a.b.c",
		"..",
		"Bearer x.y.z",
		"eyJhbGciOiJub25lIn0.eyJhdXRoIjoieCJ9.",
		strings.Repeat("A", 4096),
		"\x00\xff\xfe",
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_, ok := tokens.VerifyAuthToken(in)
			assert.False(t, ok)
		})
	}

	_, ok := tokens.Verify("a.b.c", auth.ClaimType("bogus"))
	assert.False(t, ok)
}
