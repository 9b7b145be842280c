// Package app wires configuration into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/geosync/internal/api"
	"github.com/mohammed-shakir/geosync/internal/cache"
	"github.com/mohammed-shakir/geosync/internal/cache/redisstore"
	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/core/health"
	"github.com/mohammed-shakir/geosync/internal/core/httpclient"
	"github.com/mohammed-shakir/geosync/internal/core/ogc"
	"github.com/mohammed-shakir/geosync/internal/core/server"
	"github.com/mohammed-shakir/geosync/internal/events"
	"github.com/mohammed-shakir/geosync/internal/features"
	"github.com/mohammed-shakir/geosync/internal/geoserver"
	"github.com/mohammed-shakir/geosync/internal/layers"
	h3mapper "github.com/mohammed-shakir/geosync/internal/mapper/h3"
	"github.com/mohammed-shakir/geosync/internal/metrics"
	"github.com/mohammed-shakir/geosync/internal/store"
	"github.com/mohammed-shakir/geosync/internal/syncer"
)

// maxEventCells bounds the cell list carried by one change event.
const maxEventCells = 256

type App struct {
	Handler   http.Handler
	GeoServer *geoserver.Client
	Layers    *layers.Registry

	logger     *slog.Logger
	store      store.Store
	redis      *redisstore.Client
	publisher  events.Publisher
	dispatcher *syncer.Dispatcher

	stopListen context.CancelFunc
	listenDone chan struct{}
}

// Build opens every dependency. Redis and Kafka are optional; the local
// store is not.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, build metrics.BuildInfo) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.store = st
	logger.Info("store opened", "path", cfg.DBPath, "schema_version", st.SchemaVersion())

	reg, err := layers.Load(cfg.GeoServer, cfg.LayersFile)
	if err != nil {
		return nil, err
	}
	a.Layers = reg

	hc := httpclient.NewOutbound(cfg.Sync.Timeout)
	a.GeoServer = geoserver.New(logger, hc, cfg.GeoServer)

	var lc cache.LayerCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rp := cfg.RedisPool
		rc, err := redisstore.New(ctx, cfg.RedisAddr,
			redisstore.WithPoolSize(rp.Size),
			redisstore.WithMinIdleConns(rp.MinIdle),
			redisstore.WithDialTimeout(rp.DialTimeout),
			redisstore.WithReadTimeout(rp.ReadTimeout),
			redisstore.WithWriteTimeout(rp.WriteTimeout))
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
		lc = cache.NewRedis(logger, rc, cfg.CacheTTL)
		logger.Info("response cache enabled", "redis", cfg.RedisAddr, "ttl", cfg.CacheTTL.String())
	}

	source := cfg.Events.Source
	if source == "" {
		source = uuid.NewString()
	}
	a.publisher = events.Noop{}
	brokers := cfg.Events.BrokerList()
	if cfg.Events.Enabled && len(brokers) > 0 {
		p, err := events.NewKafka(logger, brokers, cfg.Events.Topic, 0)
		if err != nil {
			return nil, err
		}
		a.publisher = p
		logger.Info("change events enabled", "brokers", brokers, "topic", cfg.Events.Topic, "source", source)

		if cfg.Events.Consume && a.redis != nil {
			a.listen(ctx, events.NewListener(events.ListenerConfig{
				Brokers: brokers,
				Topic:   cfg.Events.Topic,
				GroupID: cfg.Events.GroupID + "-" + source,
				Source:  source,
			}, logger, lc))
		}
	}

	builder := ogc.NewTemplateBuilder(a.GeoServer.Namespace(), ogc.WithReplaceOnUpdate(cfg.Sync.ReplaceOnUpdate))
	a.dispatcher = syncer.New(logger, builder, a.GeoServer, cfg.Sync)
	if !cfg.Sync.Enabled {
		logger.Warn("geoserver sync disabled")
	}

	svc := features.New(features.Deps{
		Logger: logger,
		Store:  st,
		Cache:  lc,
		Events: a.publisher,
		Event:  events.Builder{Mapper: h3mapper.New(), Res: cfg.H3Res, MaxCells: maxEventCells, Source: source},
		Sync:   a.dispatcher,
	})

	checks := map[string]health.Check{"store": st.Ping}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}

	prov := metrics.Init(metrics.Config{Build: build})
	if a.redis != nil {
		prov.Register(a.redis.Collectors()...)
	}

	a.Handler = server.NewRouter(logger, server.Options{
		API:     api.New(logger, svc, reg, a.GeoServer, a.dispatcher, cfg.GeoServer).Routes(),
		Metrics: prov.Handler(),
		Checks:  checks,
	})
	ok = true
	return a, nil
}

func (a *App) listen(ctx context.Context, l *events.Listener) {
	ctx, a.stopListen = context.WithCancel(ctx)
	a.listenDone = make(chan struct{})
	go func() {
		defer close(a.listenDone)
		if err := l.Run(ctx); err != nil {
			a.logger.Error("change listener exited", "err", err)
		}
	}()
}

// Close drains pending syncs first, then releases the clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.stopListen != nil {
		a.stopListen()
		<-a.listenDone
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sync dispatcher: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
