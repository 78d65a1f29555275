package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/paper-trader/internal/models"
)

// HoldingsRepository reports the share count of a holding two ways: the sum
// of signed history entries and the stored position.
type HoldingsRepository interface {
	HeldShares(ctx context.Context, username, symbol string) (fromHistory, fromPosition int64, err error)
}

// messageReader is the subset of *kafka.Reader the reconciler needs
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Reconciler consumes settled trade events and checks that the account's
// history still agrees with its position for the traded symbol.
type Reconciler struct {
	reader messageReader
	repo   HoldingsRepository
	topic  string
}

// NewReconciler creates a new Kafka consumer for trade events
func NewReconciler(brokers []string, topic, groupID string, repo HoldingsRepository) *Reconciler {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Reconciler{
		reader: reader,
		repo:   repo,
		topic:  topic,
	}
}

// Start begins consuming messages until ctx is cancelled
func (r *Reconciler) Start(ctx context.Context) error {
	log.WithField("topic", r.topic).Info("Starting trade reconciler")

	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Trade reconciler shutting down...")
				return r.reader.Close()
			}
			log.WithError(err).Error("Error reading message")
			continue
		}

		if _, err := r.processMessage(ctx, msg); err != nil {
			log.WithError(err).WithField("offset", msg.Offset).Error("Error processing message")
		}
	}
}

// processMessage reports whether the event revealed a history/position mismatch
func (r *Reconciler) processMessage(ctx context.Context, msg kafka.Message) (bool, error) {
	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return false, fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != models.EventTradeSettled {
		log.WithField("event_type", event.EventType).Debug("Ignoring event")
		return false, nil
	}
	if event.Username == "" || event.Symbol == "" {
		return false, fmt.Errorf("trade event %s is missing account or symbol", event.EventID)
	}

	fromHistory, fromPosition, err := r.repo.HeldShares(ctx, event.Username, event.Symbol)
	if err != nil {
		return false, fmt.Errorf("failed to load holdings: %w", err)
	}

	fields := log.Fields{
		"event_id":      event.EventID,
		"username":      event.Username,
		"symbol":        event.Symbol,
		"from_history":  fromHistory,
		"from_position": fromPosition,
	}
	if fromHistory != fromPosition {
		log.WithFields(fields).Warn("Ledger mismatch between history and position")
		return true, nil
	}

	log.WithFields(fields).Debug("Ledger consistent")
	return false, nil
}

// Close closes the Kafka consumer
func (r *Reconciler) Close() error {
	return r.reader.Close()
}
