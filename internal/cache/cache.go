// Package cache holds encoded GeoJSON collections so repeated map loads do
// not hit the store. Cache failures degrade to misses and never fail a request.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geosync/internal/cache/keys"
	"github.com/mohammed-shakir/geosync/internal/core/observability"
)

// Entry is a cached body and its validator.
type Entry struct {
	Body []byte
	ETag string
}

// Filter narrows a collection by one attribute; the zero value is the whole
// layer.
type Filter struct {
	Attr  string
	Value string
}

// Gen is the layer generation a Get observed. Put stores under it, so a body
// loaded before an Invalidate lands under a key no later Get reads.
type Gen struct {
	n  int64
	ok bool
}

type LayerCache interface {
	Get(ctx context.Context, layer string, f Filter) (Entry, Gen, bool)
	Put(ctx context.Context, layer string, f Filter, g Gen, body []byte) Entry
	// Invalidate drops the layer's full and filtered collections.
	Invalidate(ctx context.Context, layer string)
}

// ETag is a strong validator derived from the body bytes.
func ETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}

// Store is the subset of redisstore.Client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	DelPattern(ctx context.Context, pattern string) (int, error)
}

type Redis struct {
	logger *slog.Logger
	store  Store
	ttl    time.Duration
	opTO   time.Duration
}

var _ LayerCache = (*Redis)(nil)

func NewRedis(logger *slog.Logger, store Store, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Redis{logger: logger, store: store, ttl: ttl, opTO: 250 * time.Millisecond}
}

func key(layer string, f Filter, gen int64) string {
	if f.Attr == "" {
		return keys.AtGen(keys.Layer(layer), gen)
	}
	return keys.AtGen(keys.Filtered(layer, f.Attr, f.Value), gen)
}

func (r *Redis) generation(ctx context.Context, layer string) (int64, error) {
	b, ok, err := r.store.Get(ctx, keys.Gen(layer))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("generation of %s: %w", layer, err)
	}
	return n, nil
}

func (r *Redis) Get(ctx context.Context, layer string, f Filter) (Entry, Gen, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.opTO)
	defer cancel()
	gen, err := r.generation(ctx, layer)
	if err != nil {
		observability.IncCacheError(layer)
		r.logger.WarnContext(ctx, "cache generation read failed", "layer", layer, "err", err)
		return Entry{}, Gen{}, false
	}
	g := Gen{n: gen, ok: true}
	b, ok, err := r.store.Get(ctx, key(layer, f, gen))
	if err != nil {
		observability.IncCacheError(layer)
		r.logger.WarnContext(ctx, "cache get failed", "layer", layer, "err", err)
		return Entry{}, Gen{}, false
	}
	if !ok {
		observability.IncCacheMiss(layer)
		return Entry{}, g, false
	}
	observability.IncCacheHit(layer)
	return Entry{Body: b, ETag: ETag(b)}, g, true
}

// Put stores body under g. A zero Gen, from a failed or Noop Get, stores
// nothing.
func (r *Redis) Put(ctx context.Context, layer string, f Filter, g Gen, body []byte) Entry {
	e := Entry{Body: body, ETag: ETag(body)}
	if !g.ok {
		return e
	}
	ctx, cancel := context.WithTimeout(ctx, r.opTO)
	defer cancel()
	if err := r.store.Set(ctx, key(layer, f, g.n), body, r.ttl); err != nil {
		observability.IncCacheError(layer)
		r.logger.WarnContext(ctx, "cache put failed", "layer", layer, "err", err)
	}
	return e
}

// Invalidate bumps the layer generation and then deletes the old entries. It
// runs detached from ctx cancellation because it follows a committed write.
func (r *Redis) Invalidate(ctx context.Context, layer string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opTO)
	defer cancel()
	if _, err := r.store.Incr(ctx, keys.Gen(layer)); err != nil {
		observability.IncCacheError(layer)
		r.logger.ErrorContext(ctx, "cache generation bump failed", "layer", layer, "err", err)
	}
	if _, err := r.store.DelPattern(ctx, keys.Pattern(layer)); err != nil {
		r.logger.WarnContext(ctx, "cache invalidate failed", "layer", layer, "err", err)
	}
}

// Noop never stores anything; it is used when no Redis address is configured.
type Noop struct{}

var _ LayerCache = Noop{}

func (Noop) Get(context.Context, string, Filter) (Entry, Gen, bool) { return Entry{}, Gen{}, false }

func (Noop) Put(_ context.Context, _ string, _ Filter, _ Gen, body []byte) Entry {
	return Entry{Body: body, ETag: ETag(body)}
}

func (Noop) Invalidate(context.Context, string) {}
