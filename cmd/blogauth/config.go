package main

import (
	"time"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration read from BLOG_* variables.
type Config struct {
	Addr      string `envconfig:"ADDR" default:":8572"`
	DSN       string `envconfig:"DSN" default:"file:blog.db?cache=shared"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	BaseURL   string `envconfig:"BASE_URL" default:"http://localhost:8572"`

	SecretKey       string        `envconfig:"SECRET_KEY" required:"true"`
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	Issuer          string        `envconfig:"ISSUER" default:"blog"`
	AdminEmail      string        `envconfig:"ADMIN_EMAIL"`
	EnableComment   bool          `envconfig:"ENABLE_COMMENT" default:"true"`
	EnableRegister  bool          `envconfig:"ENABLE_REGISTER" default:"true"`
	CommentCooldown time.Duration `envconfig:"COMMENT_COOLDOWN" default:"60s"`

	FeatureGate bool            `envconfig:"FEATURE_GATE"`
	Features    map[string]bool `envconfig:"FEATURES"`
	LiveEnabled bool            `envconfig:"LIVE" default:"true"`

	Debug bool `envconfig:"DEBUG"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("blog", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.AuthOptions().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuthOptions maps the env configuration onto the library options
func (c *Config) AuthOptions() auth.Options {
	return auth.Options{
		SigningKey:          c.SecretKey,
		TokenTTL:            c.TokenTTL,
		Issuer:              c.Issuer,
		AdminEmail:          c.AdminEmail,
		CommentsEnabled:     c.EnableComment,
		RegistrationEnabled: c.EnableRegister,
		CommentCooldown:     c.CommentCooldown,
	}
}
