package token

import (
	"context"
	"time"

	"github.com/upb/channel-token-service/identity"
	"github.com/upb/channel-token-service/middleware"
	"github.com/upb/channel-token-service/models"
	"github.com/upb/channel-token-service/services"
	"go.uber.org/zap"
)

// Recorder receives audit events. Record must not block.
type Recorder interface {
	Record(event *models.IssuanceEvent)
}

// Config holds the deployment policy for token issuance
type Config struct {
	Window              time.Duration
	IssueMessagingToken bool
	RequireAuth         bool
	AuthBypass          bool
	StrictMapping       bool
}

// Service runs validate -> resolve -> issue for each request. It keeps no
// per-request state and is safe for concurrent use.
type Service struct {
	validator *Validator
	resolver  *Resolver
	issuer    *Issuer
	recorder  Recorder
	clock     func() time.Time
	logger    *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for expiry computation
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithRecorder sets the audit recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// NewService creates a new token service
func NewService(cfg Config, source CredentialSource, signer Signer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		validator: NewValidator(ValidatorConfig{
			RequireAuth:   cfg.RequireAuth,
			AuthBypass:    cfg.AuthBypass,
			StrictMapping: cfg.StrictMapping,
		}),
		resolver: NewResolver(source),
		issuer: NewIssuer(signer, IssuerConfig{
			Window:              cfg.Window,
			IssueMessagingToken: cfg.IssueMessagingToken,
		}),
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken validates the request, resolves credentials and issues the
// token set. Errors are *services.DomainError values safe to classify; only
// their Message may be shown to callers.
func (s *Service) GenerateToken(ctx context.Context, raw RawRequest, caller *identity.Identity) (*IssuedTokenSet, error) {
	requestID := middleware.GetRequestIDFromContext(ctx)

	req, err := s.validator.Validate(raw, caller)
	if err != nil {
		s.logger.Warn("token request rejected",
			zap.String("request_id", requestID),
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.String("reason", services.PublicMessage(err)))
		s.record(models.NewIssuanceEvent(requestID, models.IssuanceOutcomeRejected).
			WithRequest(raw.ChannelName, "", raw.Role, raw.Env).
			WithError(string(services.GetErrorType(err)), services.PublicMessage(err)))
		return nil, err
	}

	creds, err := s.resolver.Resolve(req.Environment)
	if err != nil {
		s.logger.Error("credentials not configured",
			zap.String("request_id", requestID),
			zap.String("environment", string(req.Environment)))
		s.record(s.event(requestID, models.IssuanceOutcomeRejected, req).
			WithError(string(services.GetErrorType(err)), services.PublicMessage(err)))
		return nil, err
	}

	set, err := s.issuer.Issue(req, creds, s.clock())
	if err != nil {
		s.logger.Error("token generation failed",
			zap.String("request_id", requestID),
			zap.String("uid", req.UserID),
			zap.String("channel", req.ChannelName),
			zap.Error(err))
		s.record(s.event(requestID, models.IssuanceOutcomeFailed, req).
			WithError(string(services.GetErrorType(err)), services.PublicMessage(err)))
		return nil, err
	}

	s.logger.Info("token generated successfully",
		zap.String("request_id", requestID),
		zap.String("uid", req.UserID),
		zap.String("channel", req.ChannelName),
		zap.String("role", req.Role.String()),
		zap.String("environment", string(req.Environment)),
		zap.Int64("expires_at", set.ExpiresAt))
	s.record(s.event(requestID, models.IssuanceOutcomeSuccess, req).WithExpiry(set.ExpiresAt, set.RTMToken != ""))

	return set, nil
}

func (s *Service) event(requestID string, outcome models.IssuanceOutcome, req TokenRequest) *models.IssuanceEvent {
	return models.NewIssuanceEvent(requestID, outcome).
		WithRequest(req.ChannelName, req.UserID, req.Role.String(), string(req.Environment)).
		WithCaller(req.CallerSubject)
}

func (s *Service) record(event *models.IssuanceEvent) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(event)
}
