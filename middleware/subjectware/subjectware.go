package subjectware

import (
	"errors"
	"strings"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization
	// ErrTokenMissing is returned by extractors when the request carries no token
	ErrTokenMissing = errors.New("missing auth token")
)

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   func(router.Context, error) error
	// ContextKey is the locals key the subject is stored under
	ContextKey  string
	TokenLookup string
	AuthScheme  string
	// Resolver is required, it turns a presented token into a user
	Resolver auth.SubjectResolver
	// Policy decides what requests without a token may do
	Policy auth.AnonymousPolicy
}

// New returns a middleware that attaches a subject to every request.
// Requests without a token get an anonymous subject, a presented token
// that fails to resolve is rejected with the error handler.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			var subject auth.Subject = auth.NewAnonymousSubject(cfg.Policy)

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil && !errors.Is(err, ErrTokenMissing) {
				return cfg.ErrorHandler(ctx, err)
			}

			if raw != "" {
				user, err := cfg.Resolver.Resolve(ctx.Context(), raw)
				if err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				subject = user
			}

			ctx.Locals(cfg.ContextKey, subject)
			ctx.SetContext(auth.WithSubject(ctx.Context(), subject))

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = auth.JSONErrorHandler(nil, false)
	}

	if cfg.Resolver == nil {
		panic("AUTH: subject middleware configuration: Resolver is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = auth.DefaultSubjectKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// ExtractRawTokenFromContext returns the first token found by extractors
func ExtractRawTokenFromContext(ctx router.Context, extractors []TokenExtractor) (string, error) {
	err := ErrTokenMissing
	for _, extractor := range extractors {
		raw, xerr := extractor(ctx)
		if raw != "" && xerr == nil {
			return raw, nil
		}
		if xerr != nil && !errors.Is(xerr, ErrTokenMissing) {
			err = xerr
		}
	}
	return "", err
}

type TokenExtractor func(c router.Context) (string, error)

// GetExtractors parses a lookup like "header:Authorization,query:token"
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && authSchemes[0] != "" {
		authScheme = authSchemes[0]
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

func tokenFromHeader(header string, authScheme string) TokenExtractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c router.Context) (string, error) {
		a := strings.TrimSpace(c.Header(header))
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
