package main

import (
	auth "github.com/goliatone/go-blog-auth"
	gateadapter "github.com/goliatone/go-blog-auth/adapters/featuregate"
	"github.com/goliatone/go-featuregate/adapters/configadapter"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/resolver"
)

// FeatureDefaults returns the feature flag values the runtime gate starts
// from. Keys the resolver does not know resolve to false, so every flag the
// service checks gets an explicit value here before BLOG_FEATURES overlays.
func (c *Config) FeatureDefaults() map[string]bool {
	flags := map[string]bool{
		gate.FeatureUsersSignup:                c.EnableRegister,
		gate.FeatureUsersPasswordReset:         true,
		gate.FeatureUsersPasswordResetFinalize: true,
		auth.FeatureComments:                   c.EnableComment,
	}
	for key, enabled := range c.Features {
		flags[gate.NormalizeKey(key)] = enabled
	}
	return flags
}

// NewFeatureGate builds the runtime gate, nil when BLOG_FEATURE_GATE is off.
func NewFeatureGate(cfg *Config) gate.FeatureGate {
	if !cfg.FeatureGate {
		return nil
	}

	return resolver.New(
		resolver.WithDefaults(configadapter.NewDefaultsFromBools(cfg.FeatureDefaults())),
		resolver.WithClaimsProvider(gateadapter.NewClaimsProvider()),
	)
}
