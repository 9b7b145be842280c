// Package syncer mirrors local feature writes into GeoServer in the
// background. Submitting never blocks the caller and failures never reach it.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/model"
	"github.com/mohammed-shakir/geosync/internal/core/observability"
	"github.com/mohammed-shakir/geosync/internal/core/ogc"
	"github.com/mohammed-shakir/geosync/internal/geoserver"
	mylog "github.com/mohammed-shakir/geosync/internal/logger"
)

// Transactor executes one WFS-T document remotely.
type Transactor interface {
	Transaction(ctx context.Context, doc string) (geoserver.TransactionResult, error)
}

// Submitter is what request handling depends on.
type Submitter interface {
	Submit(op model.SyncOperation)
}

type Dispatcher struct {
	logger  *slog.Logger
	builder ogc.TransactionBuilder
	remote  Transactor
	cfg     config.SyncCfg

	queue  chan queued
	ledger *ledger
	seq    atomic.Uint64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// base is canceled when Close gives up waiting, aborting delays and
	// in-flight transactions.
	base   context.Context
	cancel context.CancelFunc

	now func() time.Time // for tests
}

type queued struct {
	op  model.SyncOperation
	seq uint64
}

var _ Submitter = (*Dispatcher)(nil)

func New(logger *slog.Logger, builder ogc.TransactionBuilder, remote Transactor, cfg config.SyncCfg) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Queue < 0 {
		cfg.Queue = 0
	}
	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		logger:  logger,
		builder: builder,
		remote:  remote,
		cfg:     cfg,
		queue:   make(chan queued, cfg.Queue),
		ledger:  newLedger(cfg.LedgerSize),
		base:    base,
		cancel:  cancel,
		now:     time.Now,
	}
	if cfg.Enabled {
		d.wg.Add(cfg.Workers)
		for range cfg.Workers {
			go d.worker()
		}
	}
	return d
}

// Submit hands op to the worker pool. It fills in ID and At when unset. A
// full queue, a closed dispatcher or disabled sync discards the operation.
func (d *Dispatcher) Submit(op model.SyncOperation) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.At.IsZero() {
		op.At = d.now()
	}
	q := queued{op: op, seq: d.seq.Add(1)}
	layer := string(op.Kind)

	if !d.cfg.Enabled {
		d.record(q, StatusSkipped, nil, 0)
		observability.ObserveSync(layer, string(op.Op), observability.SyncSkipped, 0)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(q, "dispatcher closed")
		return
	}
	d.record(q, StatusPending, nil, 0)
	select {
	case d.queue <- q:
		observability.SetSyncQueueDepth(len(d.queue))
	default:
		d.drop(q, "queue full")
	}
}

func (d *Dispatcher) drop(q queued, reason string) {
	d.record(q, StatusDropped, errors.New(reason), 0)
	observability.IncSyncDropped(string(q.op.Kind))
	d.logger.Warn("geoserver sync dropped",
		"reason", reason,
		"sync_id", q.op.ID,
		"layer", string(q.op.Kind),
		"op", string(q.op.Op),
		"feature_id", featureID(q.op))
}

// Outcome returns the last recorded sync state for a feature.
func (d *Dispatcher) Outcome(kind model.Kind, id int64) (Outcome, bool) {
	return d.ledger.get(kind, id)
}

// Close stops intake and waits for queued work to finish or ctx to expire,
// whichever comes first. Work still running after ctx expires is canceled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for q := range d.queue {
		observability.SetSyncQueueDepth(len(d.queue))
		d.process(q)
	}
}

// process waits until op.At+Delay so the local commit has settled, then
// sends the transaction. Every result lands in the ledger and the metrics.
func (d *Dispatcher) process(q queued) {
	op := q.op
	ctx := mylog.WithSyncID(d.base, op.ID)
	ctx = mylog.WithComponent(ctx, "sync")
	ctx = mylog.WithLayer(ctx, string(op.Kind))
	layer, opName := string(op.Kind), string(op.Op)
	id := featureID(op)

	if wait := op.At.Add(d.cfg.Delay).Sub(d.now()); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			d.finish(ctx, q, StatusError, ctx.Err(), 0)
			return
		}
	}

	doc, err := d.builder.Build(op)
	if err != nil {
		d.finish(ctx, q, StatusError, err, 0)
		return
	}

	callCtx := ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	res, err := d.remote.Transaction(callCtx, doc)
	var (
		statusErr *geoserver.StatusError
		exErr     *geoserver.ExceptionError
	)
	switch {
	case err == nil:
		if !res.Affected() {
			d.logger.DebugContext(ctx, "geoserver transaction changed nothing",
				"op", opName, "feature_id", id, "layer", layer)
		}
		d.finish(ctx, q, StatusOK, nil, res.StatusCode)
	case errors.As(err, &statusErr), errors.As(err, &exErr):
		d.finish(ctx, q, StatusRejected, err, res.StatusCode)
	default:
		d.finish(ctx, q, StatusError, err, res.StatusCode)
	}
}

func (d *Dispatcher) finish(ctx context.Context, q queued, status string, err error, code int) {
	op := q.op
	elapsed := d.now().Sub(op.At)
	d.record(q, status, err, code)

	outcome := observability.SyncOK
	switch status {
	case StatusRejected:
		outcome = observability.SyncRejected
	case StatusError:
		outcome = observability.SyncError
	}
	observability.ObserveSync(string(op.Kind), string(op.Op), outcome, elapsed.Seconds())

	if err != nil {
		d.logger.ErrorContext(ctx, "geoserver sync failed",
			"op", string(op.Op),
			"feature_id", featureID(op),
			"status", status,
			"status_code", code,
			"err", err)
		return
	}
	d.logger.InfoContext(ctx, "geoserver sync ok",
		"op", string(op.Op),
		"feature_id", featureID(op),
		"elapsed", elapsed.String())
}

func (d *Dispatcher) record(q queued, status string, err error, code int) {
	op := q.op
	o := Outcome{
		SyncID:     op.ID,
		Layer:      op.Kind,
		FeatureID:  featureID(op),
		Op:         op.Op,
		OK:         status == StatusOK,
		Status:     status,
		StatusCode: code,
		At:         d.now().UTC(),
		seq:        q.seq,
	}
	if err != nil {
		o.Error = err.Error()
	}
	if status != StatusPending {
		o.Duration = d.now().Sub(op.At)
	}
	d.ledger.record(o)
}

func featureID(op model.SyncOperation) int64 {
	if op.Feature == nil {
		return 0
	}
	return op.Feature.FeatureID()
}
