package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geosync/internal/core/observability"
	mylog "github.com/mohammed-shakir/geosync/internal/logger"
)

// Listener outcomes reported to change_events_total.
const (
	OutcomeApplied = "applied"
	OutcomeOwn     = "own"
	OutcomeInvalid = "invalid"
)

// Invalidator is the part of cache.LayerCache the listener needs.
type Invalidator interface {
	Invalidate(ctx context.Context, layer string)
}

type ListenerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// Source is this instance's tag; events carrying it are skipped.
	Source string
}

// Listener drops cached collections when another instance announces a change
// to the same layer.
type Listener struct {
	cfg    ListenerConfig
	logger *slog.Logger
	cache  Invalidator
}

func NewListener(cfg ListenerConfig, logger *slog.Logger, cache Invalidator) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{cfg: cfg, logger: logger, cache: cache}
}

func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "geosync"
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	return cfg
}

// Run consumes until ctx is done. Consume errors are logged and retried.
func (l *Listener) Run(ctx context.Context) error {
	if l.cache == nil {
		return errors.New("events: listener has no cache")
	}
	group, err := sarama.NewConsumerGroup(l.cfg.Brokers, l.cfg.GroupID, ConsumerConfig())
	if err != nil {
		return fmt.Errorf("events: create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	h := &groupHandler{process: l.ProcessOne, logger: l.logger}
	l.logger.Info("change listener starting",
		"brokers", l.cfg.Brokers, "topic", l.cfg.Topic, "group", l.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{l.cfg.Topic}, h); err != nil && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
			l.logger.Error("change listener consume failed", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			l.logger.Info("change listener stopped")
			return nil
		}
	}
}

// ProcessOne applies one message. Undecodable or invalid events are reported
// and return an error; the handler still commits past them.
func (l *Listener) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev ChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncEvent("unknown", OutcomeInvalid)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.IncEvent(ev.Layer, OutcomeInvalid)
		return fmt.Errorf("invalid event: %w", err)
	}
	if l.cfg.Source != "" && ev.Source == l.cfg.Source {
		observability.IncEvent(ev.Layer, OutcomeOwn)
		return nil
	}

	ctx = mylog.WithLayer(mylog.WithComponent(ctx, "events"), ev.Layer)
	l.cache.Invalidate(ctx, ev.Layer)
	observability.IncEvent(ev.Layer, OutcomeApplied)
	l.logger.DebugContext(ctx, "cache invalidated by change event",
		"op", ev.Op, "feature_id", ev.FeatureID, "source", ev.Source)
	return nil
}

type groupHandler struct {
	process func(context.Context, *sarama.ConsumerMessage) error
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message after processing it, failed or not, so a
// poison event cannot stall the partition.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				h.logger.Warn("change event skipped",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
