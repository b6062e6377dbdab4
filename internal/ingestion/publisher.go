package ingestion

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/observability"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	OutboundStream        = "PREDICT_LEDGER_EVENTS"
	OutboundSubjectPrefix = "predict.ledger.events"
)

// Publisher is the subset of jetstream.JetStream the outbound publisher uses
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes committed operations for downstream consumers.
// Delivery is best effort: the event log in Postgres is the source of truth.
type OutboundPublisher struct {
	js        Publisher
	inputChan <-chan core.CoreOutput
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// PublishableEvent is the outbound wire format.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	MarketID       *uint64         `json:"market_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewOutboundPublisher(js Publisher, inputChan <-chan core.CoreOutput, metrics *observability.Metrics, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// NewPublishableEvent converts an engine output to its wire form
func NewPublishableEvent(out core.CoreOutput) PublishableEvent {
	env := out.Envelope
	return PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		MarketID:       env.MarketID,
		Payload:        json.RawMessage(env.Payload),
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		Timestamp:      env.Timestamp,
	}
}

// Subject returns predict.ledger.events.<event_type>[.<market_id>]
func (p PublishableEvent) Subject() string {
	subject := OutboundSubjectPrefix + "." + p.EventType
	if p.MarketID != nil {
		subject += "." + strconv.FormatUint(*p.MarketID, 10)
	}
	return subject
}

// Run publishes until ctx is cancelled or the channel closes.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			evt := NewPublishableEvent(out)
			if err := op.publish(ctx, evt); err != nil {
				op.log.Warn().Err(err).Int64("sequence", evt.Sequence).Msg("outbound publish failed")
			}
			if op.metrics != nil {
				op.metrics.SetChannelSize("publish", len(op.inputChan))
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// The state hash identifies the committed operation; JetStream drops a
	// republish inside its duplicate window.
	_, err = op.js.Publish(ctx, evt.Subject(), data, jetstream.WithMsgID(evt.StateHash))
	return err
}
