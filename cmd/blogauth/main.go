package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-blog-auth/activitymap"
	"github.com/goliatone/go-blog-auth/middleware/subjectware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *Config
	bunDB    *bun.DB
	redis    *redis.Client
	repo     auth.RepositoryManager
	tokens   *auth.TokenAuthority
	comments *auth.CommentGate
	features gate.FeatureGate
	activity auth.ActivitySink
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level := glog.Info
	if cfg.Debug {
		level = glog.Trace
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("blogauth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	if cfg.Debug {
		fmt.Println("============")
		redacted := *cfg
		redacted.SecretKey = "<redacted>"
		fmt.Println(print.MaybeHighlightJSON(redacted))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	activityLogger := app.GetLogger("activity")
	app.activity = activitymap.NewSink(func(n activitymap.Normalized) error {
		activityLogger.Info("%s %s", n.Verb, print.MaybePrettyJSON(n))
		return nil
	})

	app.features = NewFeatureGate(cfg)
	if app.features != nil {
		app.GetLogger("features").Info("runtime feature gate enabled")
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithThrottle(ctx, app); err != nil {
		panic(err)
	}

	WithHTTPServer(app)

	app.srv.Serve(cfg.Addr)

	WaitExitSignal()

	if app.redis != nil {
		_ = app.redis.Close()
	}
	_ = app.bunDB.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.DSN)
	if err != nil {
		return err
	}

	app.bunDB = bun.NewDB(sqldb, sqlitedialect.New())

	group, err := auth.Migrate(ctx, app.bunDB)
	if err != nil {
		return err
	}

	logger := app.GetLogger("persistence")
	if group.IsZero() {
		logger.Info("no new migrations to run")
	} else {
		logger.Info("migrated to %s", group)
	}

	app.repo = auth.NewRepositoryManager(app.bunDB)
	if err := app.repo.Validate(); err != nil {
		return err
	}

	seed := auth.NewSeedRolesHandler(app.repo).
		WithActivitySink(app.activity).
		WithLogger(app.GetLogger("auth:roles"))

	return seed.Execute(ctx, auth.SeedRolesMessage{})
}

func WithThrottle(ctx context.Context, app *App) error {
	var store auth.ThrottleStore

	if app.config.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		store = auth.NewRedisThrottleStore(app.redis)
	} else {
		app.GetLogger("throttle").Warn("BLOG_REDIS_ADDR not set, comment throttle is process local")
		store = auth.NewMemoryThrottleStore()
	}

	throttle := auth.NewCommentThrottle(store, app.config.AuthOptions(),
		auth.WithThrottleLogger(app.GetLogger("auth:throttle")),
	)
	app.comments = auth.NewCommentGate(throttle)
	if app.features != nil {
		app.comments.WithFeatureGate(app.features)
	}

	return nil
}

func WithHTTPServer(app *App) {
	opts := app.config.AuthOptions()

	app.tokens = auth.NewTokenAuthority(opts,
		auth.WithTokenLogger(app.GetLogger("auth:tokens")),
	)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	errHandler := auth.JSONErrorHandler(app.GetLogger("http"), app.config.Debug)

	resolver := auth.NewAuthTokenResolver(app.tokens, app.repo.Users()).
		WithLogger(app.GetLogger("auth:resolver"))

	srv.Router().Use(subjectware.New(subjectware.Config{
		Resolver:     resolver,
		Policy:       auth.AnonymousPolicyFromConfig(opts),
		ErrorHandler: errHandler,
	}))

	mailer := auth.NewLogMailer(app.config.BaseURL).
		WithLogger(app.GetLogger("mailer"))

	controllerOpts := []auth.AccountControllerOption{
		auth.WithControllerMailer(mailer),
		auth.WithControllerActivitySink(app.activity),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithControllerDebug(app.config.Debug),
		auth.WithControllerErrorHandler(errHandler),
	}
	if app.features != nil {
		controllerOpts = append(controllerOpts, auth.WithControllerFeatureGate(app.features))
	}

	auth.RegisterAccountRoutes(srv.Router(), app.repo, app.tokens, opts, controllerOpts...)

	api := &APIController{comments: app.comments, errHandler: errHandler}

	srv.Router().Get("/api/v1/me", api.Me).SetName("api.me")
	srv.Router().Post("/api/v1/comments/authorize", api.AuthorizeComment).
		SetName("api.comments.authorize")
	srv.Router().Post("/api/v1/posts/authorize", api.AuthorizePost).
		SetName("api.posts.authorize")
	srv.Router().Get("/api/v1/moderation/authorize", api.Allowed,
		auth.PermissionRequired(auth.PermissionModerate, errHandler),
	).SetName("api.moderation.authorize")

	if app.config.LiveEnabled {
		live := NewLiveController(app.comments, app.GetLogger("live"))
		wsHandler := router.NewWSHandler(live.Middleware(resolver)(live.Handle))
		srv.Router().WebSocket("/ws", router.DefaultWebSocketConfig(), func(c router.WebSocketContext) error {
			return wsHandler(c)
		}).SetName("live.ws")
	}

	app.srv = srv
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
