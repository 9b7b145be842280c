package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geosync/internal/core/observability"
)

// Outcomes reported to change_events_total.
const (
	OutcomeQueued  = "queued"
	OutcomeDropped = "dropped"
	OutcomeFailed  = "failed"
)

type Publisher interface {
	// Publish never blocks the caller; a full queue drops the event.
	Publish(ev ChangeEvent)
	Close() error
}

type Kafka struct {
	logger  *slog.Logger
	topic   string
	events  chan ChangeEvent
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errsout chan struct{}
}

var _ Publisher = (*Kafka)(nil)

func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "geosync"
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

func NewKafka(logger *slog.Logger, brokers []string, topic string, queueSize int) (*Kafka, error) {
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewKafkaWithProducer(logger, prod, topic, queueSize), nil
}

// NewKafkaWithProducer takes ownership of prod and closes it in Close.
func NewKafkaWithProducer(logger *slog.Logger, prod sarama.AsyncProducer, topic string, queueSize int) *Kafka {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Kafka{
		logger:  logger,
		topic:   topic,
		events:  make(chan ChangeEvent, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errsout: make(chan struct{}),
	}
	go p.pump()
	go p.drainErrors()
	return p
}

func (p *Kafka) pump() {
	defer close(p.stopped)
	for ev := range p.events {
		b, err := json.Marshal(ev)
		if err != nil {
			p.logger.Error("events: marshal", "layer", ev.Layer, "err", err)
			observability.IncEvent(ev.Layer, OutcomeFailed)
			continue
		}
		p.prod.Input() <- &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.Layer + "/" + strconv.FormatInt(ev.FeatureID, 10)),
			Value: sarama.ByteEncoder(b),
		}
	}
}

func (p *Kafka) drainErrors() {
	defer close(p.errsout)
	for perr := range p.prod.Errors() {
		if perr == nil {
			continue
		}
		layer := "unknown"
		if perr.Msg != nil {
			if k, ok := perr.Msg.Key.(sarama.StringEncoder); ok {
				layer = layerOf(string(k))
			}
		}
		observability.IncEvent(layer, OutcomeFailed)
		p.logger.Warn("events: producer error", "layer", layer, "err", perr.Err)
	}
}

func layerOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i]
		}
	}
	return key
}

func (p *Kafka) Publish(ev ChangeEvent) {
	select {
	case p.events <- ev:
		observability.IncEvent(ev.Layer, OutcomeQueued)
	default:
		observability.IncEvent(ev.Layer, OutcomeDropped)
		p.logger.Warn("events: queue full, dropping", "layer", ev.Layer, "feature_id", ev.FeatureID)
	}
}

// Close flushes queued events into the producer and closes it.
func (p *Kafka) Close() error {
	close(p.events)
	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	<-p.errsout
	return nil
}

type Noop struct{}

var _ Publisher = Noop{}

func (Noop) Publish(ChangeEvent) {}
func (Noop) Close() error        { return nil }
