package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"henkan/internal/config"
	"henkan/internal/converter"
	"henkan/internal/health"
	"henkan/internal/ime"
	"henkan/internal/logging"
	"henkan/internal/metrics"
	"henkan/internal/store"
	"henkan/internal/tracing"
	"henkan/internal/usagestats"
)

// runtime holds the long-lived parts behind one engine.
type runtime struct {
	engine *ime.Engine
	log    *logging.Logger

	// mem buffers usage counters between store flushes. Nil without a store.
	mem    *usagestats.Memory
	store  *store.Store
	meter  *metrics.Provider
	tracer *tracing.Provider
	health *health.Checker
}

type runtimeOptions struct {
	metricsAddr string
	traceFile   string
}

func newRuntime(cfg *config.Config, o runtimeOptions, log *logging.Logger) (rt *runtime, err error) {
	rt = &runtime{log: log, health: health.NewChecker()}
	defer func() {
		if err != nil {
			_ = rt.close(context.Background())
		}
	}()

	lex, err := converter.LoadLexicon(cfg.Lexicon.Path)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	tc := cfg.Tracing
	tracingOpts := []tracing.Option{tracing.WithServiceVersion(version)}
	if o.traceFile != "" {
		tc.Enabled = true
		exp, err := tracing.NewFileExporter(o.traceFile)
		if err != nil {
			return nil, err
		}
		tracingOpts = append(tracingOpts, tracing.WithExporter(exp))
	}
	if rt.tracer, err = tracing.NewProvider(tc, tracingOpts...); err != nil {
		return nil, err
	}

	var sinks usagestats.Multi
	conv := converter.WithTracing(lex, rt.tracer.Tracer())

	if cfg.Metrics.Enabled || o.metricsAddr != "" {
		if rt.meter, err = metrics.NewPrometheusProvider(version); err != nil {
			return nil, err
		}
		m, err := metrics.NewMetrics(rt.meter)
		if err != nil {
			return nil, fmt.Errorf("create instruments: %w", err)
		}
		sinks = append(sinks, m)
		conv = converter.WithObserver(conv, m)
	}

	if cfg.Store.Enabled {
		rt.store, err = store.Open(cfg.Store.Path,
			store.WithBusyTimeout(time.Duration(cfg.Store.BusyTimeoutMs)*time.Millisecond),
			store.WithLogger(log.WithComponent("store")),
		)
		if err != nil {
			return nil, err
		}
		rt.mem = usagestats.NewMemory()
		sinks = append(sinks, rt.mem)
	}

	var sink usagestats.Sink = usagestats.Nop{}
	if len(sinks) > 0 {
		sink = sinks
	}

	rt.engine = ime.NewEngine(conv, cfg,
		ime.WithEngineStats(sink),
		ime.WithTracer(rt.tracer.Tracer()),
		ime.WithEngineLogger(log.WithComponent("ime")),
	)
	rt.health.RegisterFunc("engine", false, func(context.Context) health.CheckResult {
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Details: map[string]any{"sessions": len(rt.engine.Sessions())},
		}
	})
	if rt.store != nil {
		rt.health.RegisterFunc("store", true, health.PingCheck(rt.store.DB().PingContext))
	}

	rt.snapshot(context.Background(), cfg, "startup")
	return rt, nil
}

// handler routes the scrape endpoint and the health probes.
func (rt *runtime) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.meter.HTTPHandler())
	mux.Handle("/healthz", rt.health.HealthHandler())
	mux.Handle("/readyz", rt.health.ReadinessHandler())
	return mux
}

// snapshot records cfg in the store when it differs from the last one.
func (rt *runtime) snapshot(ctx context.Context, cfg *config.Config, reason string) {
	if rt.store == nil {
		return
	}
	wrote, err := rt.store.SaveConfigSnapshot(ctx, cfg, reason)
	if err != nil {
		rt.log.Warn("config snapshot failed", "reason", reason, "error", err)
		return
	}
	if wrote {
		rt.log.Debug("config snapshot stored", "reason", reason)
	}
}

// close flushes what is buffered and releases everything.
func (rt *runtime) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if rt.store != nil {
		if rt.mem != nil {
			if err := usagestats.Flush(ctx, rt.mem, rt.store); err != nil {
				errs = append(errs, err)
			}
		}
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if rt.meter != nil {
		if err := rt.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
		}
	}
	if err := rt.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	return errors.Join(errs...)
}
