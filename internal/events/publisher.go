package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sells-group/xray-ledger/internal/store"
)

// EventType represents the type of run lifecycle event
type EventType string

const (
	// EventTypeRunStarted is published when the worker picks a run up
	EventTypeRunStarted EventType = "RUN_STARTED"
	// EventTypeRowWritten is published after a ledger row is persisted
	EventTypeRowWritten EventType = "ROW_WRITTEN"
	// EventTypeProductFailed is published when a product exhausts its retries
	EventTypeProductFailed EventType = "PRODUCT_FAILED"
	// EventTypeRunCompleted is published after the last product of a run
	EventTypeRunCompleted EventType = "RUN_COMPLETED"
)

// RunStartedPayload announces a run entering the worker.
type RunStartedPayload struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	BrandCount   int       `json:"brand_count"`
	ProductCount int       `json:"product_count"`
	Source       string    `json:"source"`
}

// RowWrittenPayload reports one ledger row landing in a workbook.
type RowWrittenPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	Brand       string    `json:"brand"`
	Segment     string    `json:"segment"`
	Country     string    `json:"country"`
	ProductName string    `json:"product_name"`
	Row         int       `json:"row"`
	CategoryRev string    `json:"category_revenue,omitempty"`
	Source      string    `json:"source"`
}

// ProductFailedPayload reports a product that was skipped after errors.
type ProductFailedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	Brand       string    `json:"brand"`
	Country     string    `json:"country"`
	ProductName string    `json:"product_name"`
	Error       string    `json:"error"`
	Source      string    `json:"source"`
}

// RunCompletedPayload closes out a run.
type RunCompletedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	RowsWritten int       `json:"rows_written"`
	Failures    int       `json:"failures"`
	Source      string    `json:"source"`
}

// Publisher writes run lifecycle events through the transactional outbox.
type Publisher struct {
	db     *store.DB
	outbox *store.OutboxRepository
	logger *slog.Logger
}

func NewPublisher(db *store.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: store.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) RunStarted(ctx context.Context, payload *RunStartedPayload) error {
	stampEnvelope(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRunStarted)
	return p.publish(ctx, EventTypeRunStarted, payload.RunID, payload)
}

func (p *Publisher) RowWritten(ctx context.Context, payload *RowWrittenPayload) error {
	stampEnvelope(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRowWritten)
	return p.publish(ctx, EventTypeRowWritten, payload.RunID, payload)
}

func (p *Publisher) ProductFailed(ctx context.Context, payload *ProductFailedPayload) error {
	stampEnvelope(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeProductFailed)
	return p.publish(ctx, EventTypeProductFailed, payload.RunID, payload)
}

func (p *Publisher) RunCompleted(ctx context.Context, payload *RunCompletedPayload) error {
	stampEnvelope(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRunCompleted)
	return p.publish(ctx, EventTypeRunCompleted, payload.RunID, payload)
}

// stampEnvelope fills the shared event metadata fields when the caller
// left them empty.
func stampEnvelope(eventID, eventType *string, timestamp *time.Time, source *string, et EventType) {
	if *eventID == "" {
		*eventID = uuid.New().String()
	}
	if *eventType == "" {
		*eventType = string(et)
	}
	if timestamp.IsZero() {
		*timestamp = time.Now()
	}
	if *source == "" {
		*source = "xray-ledger"
	}
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, runID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &store.OutboxEvent{
		AggregateType: "run",
		AggregateID:   runID,
		EventType:     string(eventType),
		Payload:       data,
		TargetStream:  store.DefaultTargetStream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", eventType,
		"run_id", runID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
