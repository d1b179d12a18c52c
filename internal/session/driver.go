package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/neuroadapt/internal/signal"
)

// #region inputs
// InputProvider supplies the non-signal inputs of a session's next cycle.
type InputProvider interface {
	Next(ctx context.Context, sessionID string, cycle int) (CycleInput, error)
}

// InputFunc adapts a function to InputProvider.
type InputFunc func(ctx context.Context, sessionID string, cycle int) (CycleInput, error)

// Next calls f.
func (f InputFunc) Next(ctx context.Context, sessionID string, cycle int) (CycleInput, error) {
	return f(ctx, sessionID, cycle)
}

// StaticInputs returns the same inputs every cycle.
type StaticInputs CycleInput

// Next returns the fixed inputs.
func (s StaticInputs) Next(context.Context, string, int) (CycleInput, error) {
	return CycleInput(s), nil
}

// #endregion inputs

// #region driver
// Lane binds a session to the source and inputs that feed it.
type Lane struct {
	Session *Session
	Source  signal.Source
	Inputs  InputProvider
}

// DefaultMaxReadFailures is used when DriverConfig.MaxReadFailures is zero.
const DefaultMaxReadFailures = 10

// DriverConfig paces the lanes.
type DriverConfig struct {
	Tick      time.Duration // zero runs cycles back to back
	MaxCycles int           // per lane; zero runs until cancelled or the source ends
	// MaxReadFailures stops a lane after that many consecutive source errors.
	MaxReadFailures int
}

// LaneStats counts what a lane did.
type LaneStats struct {
	Cycles int
	Errors int
}

// Driver runs several sessions concurrently, one goroutine per lane.
type Driver struct {
	config DriverConfig
	lanes  []Lane
	logger *zap.Logger

	mu    sync.Mutex
	stats map[string]LaneStats
}

// NewDriver creates a driver. A nil logger disables logging.
func NewDriver(config DriverConfig, logger *zap.Logger, lanes ...Lane) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{config: config, lanes: lanes, logger: logger, stats: make(map[string]LaneStats)}
}

// Run drives every lane until the context is cancelled, MaxCycles ticks have
// passed, the lane's source is exhausted, or it failed MaxReadFailures times in
// a row. Cycle errors are logged and
// counted; the lane moves on to the next tick.
func (d *Driver) Run(ctx context.Context) (map[string]LaneStats, error) {
	seen := make(map[string]bool, len(d.lanes))
	for _, l := range d.lanes {
		if l.Session == nil || l.Source == nil || l.Inputs == nil {
			return nil, errors.New("driver: incomplete lane")
		}
		if seen[l.Session.ID()] {
			return nil, fmt.Errorf("driver: session %s has two lanes", l.Session.ID())
		}
		seen[l.Session.ID()] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range d.lanes {
		g.Go(func() error {
			return d.runLane(gctx, l)
		})
	}
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]LaneStats, len(d.stats))
	for k, v := range d.stats {
		out[k] = v
	}
	return out, err
}

func (d *Driver) runLane(ctx context.Context, l Lane) error {
	id := l.Session.ID()
	logger := d.logger.With(zap.String("session_id", id))

	limit := rate.Inf
	if d.config.Tick > 0 {
		limit = rate.Every(d.config.Tick)
	}
	limiter := rate.NewLimiter(limit, 1)
	maxFailures := d.config.MaxReadFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxReadFailures
	}
	failures := 0

	for tick := 0; d.config.MaxCycles == 0 || tick < d.config.MaxCycles; tick++ {
		if err := limiter.Wait(ctx); err != nil {
			logger.Debug("lane stopped", zap.Error(err))
			return nil
		}

		buf, err := l.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("source exhausted", zap.Int("ticks", tick))
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			d.count(id, false)
			if failures >= maxFailures {
				logger.Error("lane stopped, source keeps failing", zap.Int("failures", failures), zap.Error(err))
				return nil
			}
			logger.Warn("read window failed", zap.Error(err))
			continue
		}
		failures = 0

		in, err := l.Inputs.Next(ctx, id, l.Session.Cycles()+1)
		if err != nil {
			logger.Warn("inputs unavailable", zap.Error(err))
			d.count(id, false)
			continue
		}
		in.Buffer = buf

		if _, err := l.Session.RunCycle(ctx, in); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("cycle failed", zap.Error(err))
			d.count(id, false)
			continue
		}
		d.count(id, true)
	}
	return nil
}

func (d *Driver) count(id string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats[id]
	if ok {
		s.Cycles++
	} else {
		s.Errors++
	}
	d.stats[id] = s
}

// #endregion driver
