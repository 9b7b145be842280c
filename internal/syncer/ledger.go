package syncer

import (
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geosync/internal/core/model"
)

const (
	StatusPending  = "pending"
	StatusOK       = "ok"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusDropped  = "dropped"
	StatusSkipped  = "skipped"
)

// Outcome is the last known state of the sync for one feature.
type Outcome struct {
	SyncID     string        `json:"syncId"`
	Layer      model.Kind    `json:"layer"`
	FeatureID  int64         `json:"featureId"`
	Op         model.Op      `json:"op"`
	OK         bool          `json:"ok"`
	Status     string        `json:"status"`
	StatusCode int           `json:"statusCode,omitempty"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
	Duration   time.Duration `json:"durationNs,omitempty"`

	seq uint64
}

// ledger keeps one Outcome per feature. An update from an older submission
// never replaces one from a newer submission.
type ledger struct {
	mu  sync.Mutex
	lru *lru.Cache[string, Outcome]
}

func newLedger(size int) *ledger {
	if size <= 0 {
		size = 512
	}
	c, _ := lru.New[string, Outcome](size)
	return &ledger{lru: c}
}

func ledgerKey(kind model.Kind, id int64) string {
	return string(kind) + "/" + strconv.FormatInt(id, 10)
}

// record returns false if a newer submission already owns the entry.
func (l *ledger) record(o Outcome) bool {
	key := ledgerKey(o.Layer, o.FeatureID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lru.Get(key); ok && o.seq < last.seq {
		return false
	}
	l.lru.Add(key, o)
	return true
}

func (l *ledger) get(kind model.Kind, id int64) (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Get(ledgerKey(kind, id))
}

func (l *ledger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Len()
}
