package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenAuthority mints and verifies signed, time limited tokens bound to a
// subject and a claim type. It holds no server side state: verification is
// a pure function of the token, the secret and the clock.
//
// Tokens are not revoked or consumed. A valid token keeps verifying until
// it expires, even after the action it authorized has been applied.
type TokenAuthority struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	clock      Clock
	logger     Logger
}

// TokenAuthorityOption configures a TokenAuthority
type TokenAuthorityOption func(*TokenAuthority)

// WithClock overrides the clock used to stamp and check tokens
func WithClock(c Clock) TokenAuthorityOption {
	return func(a *TokenAuthority) {
		a.clock = normalizeClock(c)
	}
}

// WithTokenLogger sets the logger used for verification diagnostics
func WithTokenLogger(l Logger) TokenAuthorityOption {
	return func(a *TokenAuthority) {
		a.logger = normalizeLogger(l)
	}
}

// NewTokenAuthority creates a TokenAuthority from cfg
func NewTokenAuthority(cfg Config, opts ...TokenAuthorityOption) *TokenAuthority {
	a := &TokenAuthority{
		signingKey: []byte(cfg.GetSigningKey()),
		ttl:        tokenTTLFromConfig(cfg),
		issuer:     cfg.GetIssuer(),
		clock:      SystemClock{},
		logger:     defLogger{},
	}

	if aud := cfg.GetAudience(); len(aud) > 0 {
		a.audience = make(jwt.ClaimStrings, len(aud))
		copy(a.audience, aud)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// WithLogger overrides the logger
func (a *TokenAuthority) WithLogger(l Logger) *TokenAuthority {
	a.logger = normalizeLogger(l)
	return a
}

// DefaultTTL is the TTL used when a mint does not override it
func (a *TokenAuthority) DefaultTTL() time.Duration {
	return a.ttl
}

type mintOptions struct {
	ttl      time.Duration
	newEmail string
}

// MintOption customizes a single Mint call
type MintOption func(*mintOptions)

// WithTTL overrides the token lifetime. Zero keeps the default.
func WithTTL(ttl time.Duration) MintOption {
	return func(o *mintOptions) {
		o.ttl = ttl
	}
}

// WithNewEmail sets the proposed address carried by change_email tokens
func WithNewEmail(email string) MintOption {
	return func(o *mintOptions) {
		o.newEmail = email
	}
}

// Mint signs a token that authorizes claim for subjectID.
func (a *TokenAuthority) Mint(subjectID string, claim ClaimType, opts ...MintOption) (string, error) {
	token, _, err := a.mint(subjectID, claim, opts...)
	return token, err
}

func (a *TokenAuthority) mint(subjectID string, claim ClaimType, opts ...MintOption) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, goerrors.New("token subject is required", goerrors.CategoryBadInput)
	}

	if !claim.IsValid() {
		return "", time.Time{}, goerrors.New("unknown token claim type", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"claim": string(claim)})
	}

	o := &mintOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.ttl < 0 {
		return "", time.Time{}, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	ttl := o.ttl
	if ttl == 0 {
		ttl = a.ttl
	}

	claims := newActionClaims(claim, subjectID)
	if claim == ClaimChangeEmail {
		if o.newEmail == "" {
			return "", time.Time{}, goerrors.New("change email token requires the new email", goerrors.CategoryBadInput)
		}
		claims.NewEmail = o.newEmail
	}

	issuedAt := a.clock.Now()
	expiresAt := ceilSecond(issuedAt.Add(ttl))

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   subjectID,
		Audience:  a.audience,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, expiresAt, nil
}

// ceilSecond rounds t up to the next whole second. NumericDate drops the
// fraction, rounding up keeps the lifetime at least the requested TTL.
func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}

// Verify checks the token signature, expiry and claim type. Any failure
// yields false without saying which check failed.
func (a *TokenAuthority) Verify(tokenString string, expected ClaimType) (Grant, bool) {
	grant, err := a.verify(tokenString, expected)
	if err != nil {
		a.logger.Debug("token rejected: claim=%s reason=%v", expected, err)
		return Grant{}, false
	}
	return grant, true
}

func (a *TokenAuthority) verify(tokenString string, expected ClaimType) (grant Grant, err error) {
	defer func() {
		if r := recover(); r != nil {
			grant = Grant{}
			err = fmt.Errorf("token parse panic: %v", r)
		}
	}()

	if tokenString == "" {
		return Grant{}, jwt.ErrTokenMalformed
	}

	if !expected.IsValid() {
		return Grant{}, fmt.Errorf("unknown claim type %q", expected)
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if a.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(a.issuer))
	}
	if len(a.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(a.audience[0]))
	}

	claims := &ActionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return Grant{}, err
	}

	if !token.Valid {
		return Grant{}, jwt.ErrTokenSignatureInvalid
	}

	subjectID := claims.SubjectFor(expected)
	if subjectID == "" {
		return Grant{}, fmt.Errorf("token does not carry claim %q", expected)
	}

	grant = Grant{
		Claim:     expected,
		SubjectID: subjectID,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.Expires(),
	}

	if expected == ClaimChangeEmail {
		if claims.NewEmail == "" {
			return Grant{}, fmt.Errorf("change email token without new email")
		}
		grant.NewEmail = claims.NewEmail
	}

	return grant, nil
}

// MintConfirmationToken mints a confirm token for user
func (a *TokenAuthority) MintConfirmationToken(user *User) (string, error) {
	return a.Mint(user.SubjectID(), ClaimConfirm)
}

// MintResetToken mints a reset token for user
func (a *TokenAuthority) MintResetToken(user *User) (string, error) {
	return a.Mint(user.SubjectID(), ClaimReset)
}

// MintChangeEmailToken mints a change_email token proposing newEmail
func (a *TokenAuthority) MintChangeEmailToken(user *User, newEmail string) (string, error) {
	return a.Mint(user.SubjectID(), ClaimChangeEmail, WithNewEmail(NormalizeEmail(newEmail)))
}

// MintAuthToken mints an API token valid for ttl, zero uses the default.
// It also returns the expiration time.
func (a *TokenAuthority) MintAuthToken(user *User, ttl time.Duration) (string, time.Time, error) {
	return a.mint(user.SubjectID(), ClaimAuth, WithTTL(ttl))
}

// VerifyConfirmationToken returns the subject of a valid confirm token
func (a *TokenAuthority) VerifyConfirmationToken(token string) (string, bool) {
	grant, ok := a.Verify(token, ClaimConfirm)
	return grant.SubjectID, ok
}

// VerifyResetToken returns the subject of a valid reset token
func (a *TokenAuthority) VerifyResetToken(token string) (string, bool) {
	grant, ok := a.Verify(token, ClaimReset)
	return grant.SubjectID, ok
}

// VerifyChangeEmailToken returns the subject and proposed email of a valid
// change_email token
func (a *TokenAuthority) VerifyChangeEmailToken(token string) (EmailChange, bool) {
	grant, ok := a.Verify(token, ClaimChangeEmail)
	if !ok {
		return EmailChange{}, false
	}
	return EmailChange{SubjectID: grant.SubjectID, NewEmail: grant.NewEmail}, true
}

// VerifyAuthToken returns the subject of a valid auth token. It runs on
// every API request and never panics on garbage input.
func (a *TokenAuthority) VerifyAuthToken(token string) (string, bool) {
	grant, ok := a.Verify(token, ClaimAuth)
	return grant.SubjectID, ok
}
