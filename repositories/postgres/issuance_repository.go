package postgres

import (
	"context"
	"fmt"

	"github.com/upb/channel-token-service/models"
	"github.com/upb/channel-token-service/repositories"
	"go.uber.org/zap"
)

// IssuanceRepository implements the repositories.IssuanceRepository interface
type IssuanceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIssuanceRepository creates a new issuance repository
func NewIssuanceRepository(db *DB, logger *zap.Logger) repositories.IssuanceRepository {
	return &IssuanceRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new issuance event
func (r *IssuanceRepository) Insert(ctx context.Context, event *models.IssuanceEvent) error {
	query := `
		INSERT INTO token_issuance_events (
			id, request_id, outcome, channel, user_id, role, environment,
			caller_subject, messaging_token, expires_at, error_type, error_message, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.RequestID,
		event.Outcome,
		event.Channel,
		event.UserID,
		event.Role,
		event.Environment,
		event.CallerSubject,
		event.MessagingToken,
		event.ExpiresAt,
		event.ErrorType,
		event.ErrorMessage,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert issuance event: %w", err)
	}

	r.logger.Debug("issuance event inserted",
		zap.String("id", event.ID.String()),
		zap.String("outcome", string(event.Outcome)))
	return nil
}

// ListRecent returns the most recent issuance events
func (r *IssuanceRepository) ListRecent(ctx context.Context, limit int) ([]*models.IssuanceEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, outcome, channel, user_id, role, environment,
		       caller_subject, messaging_token, expires_at, error_type, error_message, timestamp
		FROM token_issuance_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list issuance events: %w", err)
	}
	defer rows.Close()

	var events []*models.IssuanceEvent
	for rows.Next() {
		event := &models.IssuanceEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.RequestID,
			&event.Outcome,
			&event.Channel,
			&event.UserID,
			&event.Role,
			&event.Environment,
			&event.CallerSubject,
			&event.MessagingToken,
			&event.ExpiresAt,
			&event.ErrorType,
			&event.ErrorMessage,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issuance event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issuance events: %w", err)
	}

	return events, nil
}
