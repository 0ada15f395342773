package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for the Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockOutboxRepository is a mock for OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func TestRelay_ProcessEvents(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("successfully relay run events", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		runID := uuid.New().String()
		events := []*OutboxEvent{
			{
				ID:            uuid.New(),
				AggregateType: "run",
				AggregateID:   runID,
				EventType:     "RUN_STARTED",
				Payload:       json.RawMessage(`{"run_id":"` + runID + `","brand_count":2}`),
				TargetStream:  DefaultTargetStream,
			},
			{
				ID:            uuid.New(),
				AggregateType: "run",
				AggregateID:   runID,
				EventType:     "ROW_WRITTEN",
				Payload:       json.RawMessage(`{"run_id":"` + runID + `","country":"UK","row":3}`),
				TargetStream:  DefaultTargetStream,
			},
		}

		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			event := event
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				values, ok := args.Values.(map[string]interface{})
				if !ok {
					return false
				}
				return args.Stream == event.TargetStream &&
					values["event_type"] == event.EventType &&
					values["aggregate_id"] == event.AggregateID
			})).Return(nil)

			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		err := relay.processEvents(ctx)
		require.NoError(t, err)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("mark failed when redis publish fails", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		event := &OutboxEvent{
			ID:            uuid.New(),
			AggregateType: "run",
			AggregateID:   uuid.New().String(),
			EventType:     "RUN_COMPLETED",
			Payload:       json.RawMessage(`{"rows_written":12}`),
			TargetStream:  DefaultTargetStream,
		}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.Anything).Return(nil)

		err := relay.processEvents(ctx)
		require.NoError(t, err)

		mockOutbox.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("rejects malformed payload without touching redis", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		event := &OutboxEvent{
			ID:           uuid.New(),
			AggregateID:  uuid.New().String(),
			EventType:    "ROW_WRITTEN",
			Payload:      json.RawMessage(`not-json`),
			TargetStream: DefaultTargetStream,
		}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.Anything).Return(nil)

		err := relay.processEvents(ctx)
		require.NoError(t, err)

		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		err := relay.processEvents(ctx)
		require.NoError(t, err)

		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})
}

func TestCalculateNextRetryTime(t *testing.T) {
	now := time.Now()

	first := calculateNextRetryTime(1)
	assert.WithinDuration(t, now.Add(2*time.Second), first, time.Second)

	third := calculateNextRetryTime(3)
	assert.WithinDuration(t, now.Add(8*time.Second), third, time.Second)

	capped := calculateNextRetryTime(20)
	assert.WithinDuration(t, now.Add(300*time.Second), capped, time.Second)
}
