// Package features applies feature writes locally and fans them out to the
// response cache, the change-event topic and the GeoServer sync dispatcher.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/geosync/internal/cache"
	"github.com/mohammed-shakir/geosync/internal/core/geojson"
	"github.com/mohammed-shakir/geosync/internal/core/model"
	"github.com/mohammed-shakir/geosync/internal/events"
	"github.com/mohammed-shakir/geosync/internal/store"
	"github.com/mohammed-shakir/geosync/internal/syncer"
)

// Deps wires the service. Cache and Events default to no-ops when nil.
type Deps struct {
	Logger *slog.Logger
	Store  store.Store
	Cache  cache.LayerCache
	Events events.Publisher
	Event  events.Builder
	Sync   syncer.Submitter
}

type Service struct {
	logger *slog.Logger
	cache  cache.LayerCache
	events events.Publisher
	event  events.Builder
	sync   syncer.Submitter
	now    func() time.Time

	Factories *Layer[model.Factory]
	Roads     *Layer[model.Road]
	Forests   *Layer[model.Forest]
}

func New(d Deps) *Service {
	s := &Service{
		logger: d.Logger,
		cache:  d.Cache,
		events: d.Events,
		event:  d.Event,
		sync:   d.Sync,
		now:    time.Now,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	st := d.Store
	s.Factories = &Layer[model.Factory]{svc: s, kind: model.KindFactories, filterAttr: "industryType", ops: ops[model.Factory]{
		list:   st.ListFactories,
		listBy: st.ListFactoriesByIndustry,
		get:    st.GetFactory,
		create: func(ctx context.Context, f model.Factory) (model.Factory, error) {
			f.ID = 0
			return st.CreateFactory(ctx, f)
		},
		update: func(ctx context.Context, id int64, f model.Factory) (model.Factory, error) {
			f.ID = id
			return st.UpdateFactory(ctx, f)
		},
		del: st.DeleteFactory,
	}}
	s.Roads = &Layer[model.Road]{svc: s, kind: model.KindRoads, filterAttr: "roadType", ops: ops[model.Road]{
		list:   st.ListRoads,
		listBy: st.ListRoadsByType,
		get:    st.GetRoad,
		create: func(ctx context.Context, r model.Road) (model.Road, error) {
			r.ID = 0
			return st.CreateRoad(ctx, r)
		},
		update: func(ctx context.Context, id int64, r model.Road) (model.Road, error) {
			r.ID = id
			return st.UpdateRoad(ctx, r)
		},
		del: st.DeleteRoad,
	}}
	s.Forests = &Layer[model.Forest]{svc: s, kind: model.KindForests, filterAttr: "forestType", ops: ops[model.Forest]{
		list:   st.ListForests,
		listBy: st.ListForestsByType,
		get:    st.GetForest,
		create: func(ctx context.Context, f model.Forest) (model.Forest, error) {
			f.ID = 0
			return st.CreateForest(ctx, f)
		},
		update: func(ctx context.Context, id int64, f model.Forest) (model.Forest, error) {
			f.ID = id
			return st.UpdateForest(ctx, f)
		},
		del: st.DeleteForest,
	}}
	return s
}

// Collection returns the encoded FeatureCollection of a layer, optionally
// narrowed to one type value.
func (s *Service) Collection(ctx context.Context, kind model.Kind, typeValue string) (cache.Entry, error) {
	switch kind {
	case model.KindFactories:
		return s.Factories.Collection(ctx, typeValue)
	case model.KindRoads:
		return s.Roads.Collection(ctx, typeValue)
	case model.KindForests:
		return s.Forests.Collection(ctx, typeValue)
	default:
		return cache.Entry{}, fmt.Errorf("unknown layer %q", kind)
	}
}

// changed runs after a committed local write. None of its steps can fail the
// request.
func (s *Service) changed(ctx context.Context, op model.Op, f model.Feature) {
	kind := f.Kind()
	at := s.now()
	s.cache.Invalidate(context.WithoutCancel(ctx), string(kind))
	s.events.Publish(s.event.Build(op, f, at))
	s.sync.Submit(model.SyncOperation{Kind: kind, Op: op, Feature: f, At: at})
	s.logger.DebugContext(ctx, "feature changed",
		"layer", string(kind), "op", string(op), "feature_id", f.FeatureID())
}

type ops[T model.Feature] struct {
	list   func(ctx context.Context) ([]T, error)
	listBy func(ctx context.Context, v string) ([]T, error)
	get    func(ctx context.Context, id int64) (T, error)
	create func(ctx context.Context, v T) (T, error)
	update func(ctx context.Context, id int64, v T) (T, error)
	del    func(ctx context.Context, id int64) error
}

// Layer is the per-kind view of the service.
type Layer[T model.Feature] struct {
	svc        *Service
	kind       model.Kind
	filterAttr string
	ops        ops[T]
}

func (l *Layer[T]) Kind() model.Kind { return l.kind }

func (l *Layer[T]) List(ctx context.Context) ([]T, error) {
	out, err := l.ops.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.kind, err)
	}
	return out, nil
}

func (l *Layer[T]) ListByType(ctx context.Context, v string) ([]T, error) {
	out, err := l.ops.listBy(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("list %s by %s: %w", l.kind, l.filterAttr, err)
	}
	return out, nil
}

func (l *Layer[T]) Get(ctx context.Context, id int64) (T, error) {
	return l.ops.get(ctx, id)
}

// Create stores v under a fresh id. The store assigns the id; any id on v is
// ignored.
func (l *Layer[T]) Create(ctx context.Context, v T) (T, error) {
	saved, err := l.ops.create(ctx, v)
	if err != nil {
		var zero T
		return zero, err
	}
	l.svc.changed(ctx, model.OpCreate, saved)
	return saved, nil
}

// Update replaces every attribute of record id with v.
func (l *Layer[T]) Update(ctx context.Context, id int64, v T) (T, error) {
	saved, err := l.ops.update(ctx, id, v)
	if err != nil {
		var zero T
		return zero, err
	}
	l.svc.changed(ctx, model.OpUpdate, saved)
	return saved, nil
}

// Delete removes id locally and then mirrors the delete using the snapshot
// taken before removal.
func (l *Layer[T]) Delete(ctx context.Context, id int64) error {
	snap, err := l.ops.get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.ops.del(ctx, id); err != nil {
		return err
	}
	l.svc.changed(ctx, model.OpDelete, snap)
	return nil
}

func (l *Layer[T]) Collection(ctx context.Context, typeValue string) (cache.Entry, error) {
	f := cache.Filter{}
	if typeValue != "" {
		f = cache.Filter{Attr: l.filterAttr, Value: typeValue}
	}
	layer := string(l.kind)
	e, gen, ok := l.svc.cache.Get(ctx, layer, f)
	if ok {
		return e, nil
	}

	var (
		recs []T
		err  error
	)
	if typeValue == "" {
		recs, err = l.List(ctx)
	} else {
		recs, err = l.ListByType(ctx, typeValue)
	}
	if err != nil {
		return cache.Entry{}, err
	}
	feats := make([]model.Feature, len(recs))
	for i, r := range recs {
		feats[i] = r
	}
	body, err := geojson.Marshal(geojson.Encode(feats, l.kind))
	if err != nil {
		return cache.Entry{}, fmt.Errorf("encode %s: %w", l.kind, err)
	}
	return l.svc.cache.Put(ctx, layer, f, gen, body), nil
}
