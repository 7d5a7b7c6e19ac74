package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimType is the operation a token authorizes
type ClaimType string

const (
	// ClaimConfirm confirms account ownership of the email
	ClaimConfirm ClaimType = "confirm"
	// ClaimReset authorizes a password reset
	ClaimReset ClaimType = "reset"
	// ClaimChangeEmail authorizes moving the account to new_email
	ClaimChangeEmail ClaimType = "change_email"
	// ClaimAuth authenticates API requests
	ClaimAuth ClaimType = "auth"
)

// IsValid reports whether c is one of the known claim types
func (c ClaimType) IsValid() bool {
	switch c {
	case ClaimConfirm, ClaimReset, ClaimChangeEmail, ClaimAuth:
		return true
	default:
		return false
	}
}

func (c ClaimType) String() string { return string(c) }

// ActionClaims is the signed token payload. The claim type is encoded as
// the key holding the subject ID so a token can only be read back for the
// operation it was minted for.
type ActionClaims struct {
	jwt.RegisteredClaims
	Confirm     string `json:"confirm,omitempty"`
	Reset       string `json:"reset,omitempty"`
	ChangeEmail string `json:"change_email,omitempty"`
	NewEmail    string `json:"new_email,omitempty"`
	Auth        string `json:"auth,omitempty"`
}

func newActionClaims(claim ClaimType, subjectID string) *ActionClaims {
	claims := &ActionClaims{}
	switch claim {
	case ClaimConfirm:
		claims.Confirm = subjectID
	case ClaimReset:
		claims.Reset = subjectID
	case ClaimChangeEmail:
		claims.ChangeEmail = subjectID
	case ClaimAuth:
		claims.Auth = subjectID
	}
	return claims
}

// SubjectFor returns the subject ID stored under the claim key, empty when
// the token was not minted for claim.
func (c *ActionClaims) SubjectFor(claim ClaimType) string {
	if c == nil {
		return ""
	}
	switch claim {
	case ClaimConfirm:
		return c.Confirm
	case ClaimReset:
		return c.Reset
	case ClaimChangeEmail:
		return c.ChangeEmail
	case ClaimAuth:
		return c.Auth
	default:
		return ""
	}
}

// Expires returns the expiration time
func (c *ActionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *ActionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

// Grant is the decoded result of a successful verification
type Grant struct {
	Claim     ClaimType
	SubjectID string
	NewEmail  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SubjectUUID parses SubjectID
func (g Grant) SubjectUUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(g.SubjectID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// EmailChange is the payload of a verified change_email token
type EmailChange struct {
	SubjectID string
	NewEmail  string
}
