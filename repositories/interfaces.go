package repositories

import (
	"context"

	"github.com/upb/channel-token-service/models"
)

// IssuanceRepository persists token issuance audit events
type IssuanceRepository interface {
	// Insert appends an issuance event
	Insert(ctx context.Context, event *models.IssuanceEvent) error

	// ListRecent returns the most recent events, newest first
	ListRecent(ctx context.Context, limit int) ([]*models.IssuanceEvent, error)
}
