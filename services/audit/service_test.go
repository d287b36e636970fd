package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/channel-token-service/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockIssuanceRepository is a mock implementation of IssuanceRepository
type MockIssuanceRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.IssuanceEvent
}

func (m *MockIssuanceRepository) Insert(ctx context.Context, event *models.IssuanceEvent) error {
	args := m.Called(ctx, event)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, event)
	return args.Error(0)
}

func (m *MockIssuanceRepository) ListRecent(ctx context.Context, limit int) ([]*models.IssuanceEvent, error) {
	args := m.Called(ctx, limit)
	if events := args.Get(0); events != nil {
		return events.([]*models.IssuanceEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIssuanceRepository) Inserted() []*models.IssuanceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.IssuanceEvent(nil), m.inserted...)
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockIssuanceRepository)
	service := NewAuditService(mockRepo, zaptest.NewLogger(t), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)

	assert.Error(t, service.Stop(time.Second))
}

func TestAuditService_DefaultsConfig(t *testing.T) {
	service := NewAuditService(new(MockIssuanceRepository), zap.NewNop(), Config{})

	stats := service.GetStats()
	assert.Equal(t, DefaultConfig().BufferSize, stats.BufferSize)
	assert.Equal(t, DefaultConfig().WorkerCount, stats.WorkerCount)
}

func TestAuditService_LogEvent(t *testing.T) {
	mockRepo := new(MockIssuanceRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zaptest.NewLogger(t), Config{BufferSize: 100, WorkerCount: 2})
	require.NoError(t, service.Start())

	event := models.NewIssuanceEvent("req-1", models.IssuanceOutcomeSuccess).
		WithRequest("room1", "42", "publisher", "prod")
	require.NoError(t, service.LogEvent(event))

	// Stop drains the buffer before returning
	require.NoError(t, service.Stop(5*time.Second))

	inserted := mockRepo.Inserted()
	require.Len(t, inserted, 1)
	assert.Equal(t, "req-1", inserted[0].RequestID)
	assert.Equal(t, models.IssuanceOutcomeSuccess, inserted[0].Outcome)
}

func TestAuditService_NotRunning(t *testing.T) {
	service := NewAuditService(new(MockIssuanceRepository), zap.NewNop(), DefaultConfig())

	err := service.LogEvent(models.NewIssuanceEvent("req", models.IssuanceOutcomeSuccess))
	assert.Error(t, err)

	require.NoError(t, service.Start())
	require.NoError(t, service.Stop(time.Second))

	err = service.LogEvent(models.NewIssuanceEvent("req", models.IssuanceOutcomeSuccess))
	assert.Error(t, err)
}

func TestAuditService_MultipleEventsConcurrently(t *testing.T) {
	mockRepo := new(MockIssuanceRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 1000, WorkerCount: 4})
	require.NoError(t, service.Start())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				service.Record(models.NewIssuanceEvent("req", models.IssuanceOutcomeSuccess))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.Inserted(), 100)
}

func TestAuditService_RecordDropsWhenBufferFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	release := make(chan struct{})
	picked := make(chan struct{}, 1)

	mockRepo := new(MockIssuanceRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case picked <- struct{}{}:
			default:
			}
			<-release
		}).
		Return(nil)

	service := NewAuditService(mockRepo, zap.New(core), Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, service.Start())

	// first event occupies the only worker
	service.Record(models.NewIssuanceEvent("req-1", models.IssuanceOutcomeSuccess))
	<-picked

	// second fills the buffer, third is dropped
	service.Record(models.NewIssuanceEvent("req-2", models.IssuanceOutcomeSuccess))
	service.Record(models.NewIssuanceEvent("req-3", models.IssuanceOutcomeSuccess))

	dropped := logs.FilterMessage("dropping audit event").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "req-3", dropped[0].ContextMap()["request_id"])

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.Inserted(), 2)
}

func TestAuditService_InsertErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	mockRepo := new(MockIssuanceRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))

	service := NewAuditService(mockRepo, zap.New(core), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())

	service.Record(models.NewIssuanceEvent("req-1", models.IssuanceOutcomeFailed))
	require.NoError(t, service.Stop(5*time.Second))

	assert.Equal(t, 1, logs.FilterMessage("failed to process audit event").Len())
}
