package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/channel-token-service/config"
	"github.com/upb/channel-token-service/handlers"
	"github.com/upb/channel-token-service/identity"
	"github.com/upb/channel-token-service/middleware"
	"github.com/upb/channel-token-service/repositories"
	"github.com/upb/channel-token-service/repositories/postgres"
	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services/audit"
	"github.com/upb/channel-token-service/services/token"
	"github.com/upb/channel-token-service/signer"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Signing
	Secrets *secrets.Store
	Signer  token.Signer

	// Audit (nil when DATABASE_URL is unset)
	IssuanceEvents repositories.IssuanceRepository
	Audit          *audit.AuditService

	// Services and HTTP
	TokenService   *token.Service
	AuthMiddleware *middleware.AuthMiddleware
	TokenHandler   *handlers.TokenHandler
	HealthHandler  *handlers.HealthHandler

	// IssuanceHandler is nil when the audit log is disabled
	IssuanceHandler *handlers.IssuanceHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Signer: signer.NewJWTSigner(),
	}

	if err := deps.initSecrets(cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	if cfg.Database != nil {
		if err := deps.initDatabase(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := deps.initAudit(cfg); err != nil {
			deps.closeDB()
			return nil, fmt.Errorf("failed to initialize audit: %w", err)
		}
	} else {
		logger.Info("DATABASE_URL not set, issuance audit log disabled")
	}

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initTokenService(cfg)
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initSecrets loads the signing credentials once; they are never reloaded
func (d *Dependencies) initSecrets(cfg *config.Config) error {
	store, err := secrets.Load(cfg.Secrets.File)
	if err != nil {
		return err
	}
	d.Secrets = store

	for env, ok := range store.Configured() {
		if ok {
			d.Logger.Info("signing credentials loaded", zap.String("environment", string(env)))
		} else {
			d.Logger.Warn("signing credentials missing", zap.String("environment", string(env)))
		}
	}
	return nil
}

// initDatabase connects to Postgres and ensures the audit table exists
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		d.closeDB()
		return err
	}
	return nil
}

func (d *Dependencies) initAudit(cfg *config.Config) error {
	d.IssuanceEvents = postgres.NewIssuanceRepository(d.DB, d.Logger)
	d.Audit = audit.NewAuditService(d.IssuanceEvents, d.Logger, audit.Config{
		BufferSize:  cfg.Database.AuditBuffer,
		WorkerCount: cfg.Database.AuditWorkers,
	})
	return d.Audit.Start()
}

// initAuth selects the caller token verifier for AUTH_MODE
func (d *Dependencies) initAuth(cfg *config.Config) error {
	var validator middleware.TokenValidator

	switch cfg.Auth.Mode {
	case config.AuthModeJWKS:
		v, err := identity.NewJWKSValidator(identity.JWKSConfig{
			JWKSURL:     cfg.Auth.JWKSURL,
			Issuer:      cfg.Auth.Issuer,
			Audience:    cfg.Auth.Audience,
			CacheTTL:    cfg.Auth.JWKSCacheTTL,
			HTTPTimeout: 10 * time.Second,
		})
		if err != nil {
			return err
		}
		validator = v
	case config.AuthModeHMAC:
		v, err := identity.NewHMACValidator(identity.HMACConfig{
			Secret:   cfg.Auth.HMACSecret,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
		if err != nil {
			return err
		}
		validator = v
	default:
		d.Logger.Warn("caller verification disabled, all requests are anonymous")
	}

	if cfg.Auth.Bypass {
		d.Logger.Warn("AUTH_BYPASS enabled, anonymous callers are accepted")
	}

	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	return nil
}

func (d *Dependencies) initTokenService(cfg *config.Config) {
	opts := []token.Option{}
	if d.Audit != nil {
		opts = append(opts, token.WithRecorder(d.Audit))
	}

	d.TokenService = token.NewService(token.Config{
		Window:              cfg.Token.TTL,
		IssueMessagingToken: cfg.Token.IssueMessagingToken,
		RequireAuth:         cfg.Auth.RequireAuth,
		AuthBypass:          cfg.Auth.Bypass,
		StrictMapping:       cfg.Token.StrictMapping,
	}, d.Secrets, d.Signer, d.Logger, opts...)
}

func (d *Dependencies) initHandlers() {
	var db handlers.DatabaseChecker
	if d.DB != nil {
		db = d.DB
	}
	var auditor handlers.AuditReporter
	if d.Audit != nil {
		auditor = d.Audit
	}

	d.TokenHandler = handlers.NewTokenHandler(d.TokenService, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(db, d.Secrets, auditor, d.Logger)
	if d.IssuanceEvents != nil {
		d.IssuanceHandler = handlers.NewIssuanceHandler(d.IssuanceEvents, d.Logger)
	}
}

func (d *Dependencies) closeDB() {
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
}

// Close drains the audit log and releases the database
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
