package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DefaultTokenTTL is used when the configuration does not set one
const DefaultTokenTTL = time.Hour

// DefaultCommentCooldown is the minimum gap between two comments from
// the same session
const DefaultCommentCooldown = 60 * time.Second

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetAdminEmail() string
	GetCommentsEnabled() bool
	GetRegistrationEnabled() bool
	GetCommentCooldown() time.Duration
}

// Options is a plain Config implementation
type Options struct {
	SigningKey          string        `json:"signing_key"`
	TokenTTL            time.Duration `json:"token_ttl"`
	Issuer              string        `json:"issuer"`
	Audience            []string      `json:"audience"`
	AdminEmail          string        `json:"admin_email"`
	CommentsEnabled     bool          `json:"comments_enabled"`
	RegistrationEnabled bool          `json:"registration_enabled"`
	CommentCooldown     time.Duration `json:"comment_cooldown"`
}

var _ Config = Options{}

// Validate will run validation rules
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&o.TokenTTL, validation.Min(time.Duration(0))),
		validation.Field(&o.AdminEmail, is.Email),
		validation.Field(&o.CommentCooldown, validation.Min(time.Duration(0))),
	)
}

func (o Options) GetSigningKey() string { return o.SigningKey }

func (o Options) GetTokenTTL() time.Duration {
	if o.TokenTTL <= 0 {
		return DefaultTokenTTL
	}
	return o.TokenTTL
}

func (o Options) GetIssuer() string { return o.Issuer }

func (o Options) GetAudience() []string { return o.Audience }

func (o Options) GetAdminEmail() string { return o.AdminEmail }

func (o Options) GetCommentsEnabled() bool { return o.CommentsEnabled }

func (o Options) GetRegistrationEnabled() bool { return o.RegistrationEnabled }

func (o Options) GetCommentCooldown() time.Duration {
	if o.CommentCooldown <= 0 {
		return DefaultCommentCooldown
	}
	return o.CommentCooldown
}

func tokenTTLFromConfig(cfg Config) time.Duration {
	if cfg == nil || cfg.GetTokenTTL() <= 0 {
		return DefaultTokenTTL
	}
	return cfg.GetTokenTTL()
}
