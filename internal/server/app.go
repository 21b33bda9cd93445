// Package server initializes and runs the PinVault server: it opens
// storage, runs migrations, derives keys from the root secret, wires the
// security services and serves them over gRPC until a signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/auth"
	"github.com/dmitrijs2005/pinvault/internal/server/clientmeta"
	"github.com/dmitrijs2005/pinvault/internal/server/config"
	"github.com/dmitrijs2005/pinvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pinvault/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/pinvault/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	grantKeyInfo = "pinvault/recovery-grant/v1"
	sealKeyInfo  = "pinvault/recovery-seal/v1"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	repomanager  repomanager.RepositoryManager
	orchestrator *services.Orchestrator
	proxies      clientmeta.TrustedProxies
	limiter      ratelimit.Limiter
	audit        *services.AuditLog
	closers      []io.Closer
}

// NewApp connects to storage and wires the services. Migrations are
// applied before it returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	app := &App{config: c, logger: logger, closers: []io.Closer{db}}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	app.repomanager = rm

	if err := app.wire(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire() error {
	c := app.config

	hasher, err := cryptox.NewHasher(cryptox.Params{
		Memory:      c.Argon2.MemoryKB,
		Time:        c.Argon2.Time,
		Parallelism: c.Argon2.Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return fmt.Errorf("hasher error: %w", err)
	}

	grantKey, err := cryptox.DeriveKey([]byte(c.SecretKey), grantKeyInfo, 32)
	if err != nil {
		return err
	}
	sealKey, err := cryptox.DeriveKey([]byte(c.SecretKey), sealKeyInfo, 32)
	if err != nil {
		return err
	}
	sealer, err := cryptox.NewSealer(sealKey)
	if err != nil {
		return err
	}

	app.proxies, err = clientmeta.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return err
	}

	limiter, err := app.newLimiter()
	if err != nil {
		return err
	}
	app.limiter = limiter

	rm := app.repomanager
	credentials := services.NewCredentialStore(rm, hasher, c.PINLength, time.Now)
	grants := auth.NewGrantIssuer(grantKey, c.RecoveryGrantTTL, time.Now)
	app.audit = services.NewAuditLog(rm, app.logger.With("module", "audit"), time.Now, c.AuditBufferSize)

	app.orchestrator = services.NewOrchestrator(services.OrchestratorDeps{
		RepoManager: rm,
		Credentials: credentials,
		Sessions:    services.NewSessionManager(rm, time.Now),
		Recovery:    services.NewRecoveryKeyManager(rm, credentials, sealer, grants, time.Now),
		Audit:       app.audit,
		Limiter:     limiter,
		Grants:      grants,
		Policies: services.Policies{
			Login:      policy(c.LoginLimit),
			Recovery:   policy(c.RecoveryLimit),
			Reauth:     policy(c.ReauthLimit),
			SharedLink: policy(c.SharedLinkLimit),
		},
		SessionTTL: c.SessionTTL,
		Logger:     app.logger,
		Now:        time.Now,
	})
	return nil
}

func (app *App) newLimiter() (ratelimit.Limiter, error) {
	switch app.config.RateLimitBackend {
	case config.RateLimitBackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		app.closers = append(app.closers, rdb)
		return ratelimit.NewRedisLimiter(rdb, time.Now), nil
	case config.RateLimitBackendPostgres:
		return ratelimit.NewStoreLimiter(app.repomanager, time.Now), nil
	}
	return nil, fmt.Errorf("unknown rate limit backend %q", app.config.RateLimitBackend)
}

// ThrottleStatus reports whether identifier (for example "ip:203.0.113.7"
// or "account:<id>") may still attempt under the named policy.
func (app *App) ThrottleStatus(ctx context.Context, identifier, policyName string) (bool, error) {
	var l config.RateLimit
	switch policyName {
	case "login":
		l = app.config.LoginLimit
	case "recovery":
		l = app.config.RecoveryLimit
	case "reauth":
		l = app.config.ReauthLimit
	case "shared_link":
		l = app.config.SharedLinkLimit
	default:
		return false, fmt.Errorf("unknown policy %q", policyName)
	}
	return app.limiter.IsAllowed(ctx, identifier, policy(l))
}

func policy(l config.RateLimit) ratelimit.Policy {
	return ratelimit.Policy{MaxAttempts: l.MaxAttempts, Window: l.Window}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.orchestrator, gs.WithTrustedProxies(app.proxies))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or the server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Purge removes ended sessions and login attempts older than retention.
func (app *App) Purge(ctx context.Context, retention time.Duration) error {
	res, err := services.Purge(ctx, app.repomanager, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "purge done", "sessions", res.Sessions, "attempts", res.Attempts)
	return nil
}

// Close flushes the audit log and releases connections.
func (app *App) Close() {
	if app.audit != nil {
		app.audit.Close()
		if n := app.audit.Dropped(); n > 0 {
			app.logger.Warn(context.Background(), "audit events dropped", "count", n)
		}
	}
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(context.Background(), "close error", "error", err)
	}
}
