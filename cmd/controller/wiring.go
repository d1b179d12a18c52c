package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/neuroadapt/internal/codec"
	"github.com/danielpatrickdp/neuroadapt/internal/config"
	"github.com/danielpatrickdp/neuroadapt/internal/metrics"
	"github.com/danielpatrickdp/neuroadapt/internal/publish"
	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region seeds
// sessionSeed derives a per-session seed so concurrent sessions draw
// independent signal and jitter streams.
func sessionSeed(base uint64, sessionID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return base ^ h.Sum64()
}

// #endregion seeds

// #region runtime
// runtime holds the shared collaborators of every session in one process.
type runtime struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *state.Store
	publisher *publish.Publisher
}

func openRuntime(c config.Config, l *zap.Logger) (*runtime, error) {
	store, err := state.NewStore(c.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt := &runtime{cfg: c, logger: l, store: store}
	if c.NATS.URL != "" {
		p, err := publish.Connect(c.NATS.URL, c.NATS.Subject, l)
		if err != nil {
			store.Close()
			return nil, err
		}
		rt.publisher = p
		l.Info("publishing snapshots", zap.String("url", c.NATS.URL), zap.String("subject", c.NATS.Subject))
	}
	return rt, nil
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.publisher != nil {
		errs = append(errs, rt.publisher.Close())
	}
	errs = append(errs, rt.store.Close())
	return errors.Join(errs...)
}

// openSession resumes or creates a session backed by the store, with its own
// jitter stream.
func (rt *runtime) openSession(id string) (*session.Session, error) {
	seed := sessionSeed(rt.cfg.Session.Seed, id)
	jitter := rand.New(rand.NewPCG(seed, seed>>1))
	pipeline, err := session.NewPipeline(rt.cfg.FeaturesConfig(), rt.cfg.UpdateConfig(), rt.cfg.OutcomeConfig(), jitter)
	if err != nil {
		return nil, err
	}
	deps := session.Deps{
		Pipeline: pipeline,
		Store:    rt.store,
		Logger:   rt.logger.With(zap.String("session_id", id)),
	}
	if rt.publisher != nil {
		deps.Recorders = append(deps.Recorders, rt.publisher)
	}
	return session.New(id, deps)
}

// openSource returns the remote acquisition client when one is configured,
// and a seeded synthetic source otherwise.
func (rt *runtime) openSource(id string) (signal.Source, func() error, error) {
	if rt.cfg.Acquisition.Addr == "" {
		sc := rt.cfg.SyntheticConfig()
		sc.Seed = sessionSeed(sc.Seed, id)
		return signal.NewSyntheticSource(sc), func() error { return nil }, nil
	}
	client, err := codec.NewClient(rt.cfg.Acquisition.Addr, id, rt.cfg.Session.BufferLength)
	if err != nil {
		return nil, nil, err
	}
	src := &timeoutSource{src: client, timeout: rt.cfg.Acquisition.Timeout.Duration()}
	return src, client.Close, nil
}

// #endregion runtime

// #region timeout-source
// timeoutSource bounds every window read.
type timeoutSource struct {
	src     signal.Source
	timeout time.Duration
}

func (t *timeoutSource) Next(ctx context.Context) (signal.Buffer, error) {
	if t.timeout <= 0 {
		return t.src.Next(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.src.Next(ctx)
}

// #endregion timeout-source

// #region metrics-server
// serveMetrics exposes /metrics until ctx is cancelled. An empty addr is a no-op.
func serveMetrics(ctx context.Context, addr string, l *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		l.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// #endregion metrics-server
