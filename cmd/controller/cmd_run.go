package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/textstats"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region command
var runFlags struct {
	sessions  []string
	maxCycles int
	content   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive several simulated learner sessions concurrently",
	Long: "run opens one session per --sessions entry and cycles them on the configured\n" +
		"tick until --max-cycles, the signal source ends, or the process is interrupted.\n" +
		"Learner interactions are simulated from each session's seed.",
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	runCmd.Flags().StringSliceVar(&runFlags.sessions, "sessions", []string{"default"}, "session IDs to drive")
	runCmd.Flags().IntVar(&runFlags.maxCycles, "max-cycles", -1, "cycles per session (default session.max_cycles)")
	runCmd.Flags().StringVar(&runFlags.content, "content", "", "file holding the learning material")
}

func runSessions(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	content := outcome.ContentAnalysis{Clarity: 0.7, Complexity: 0.4, Structure: 0.6}
	if runFlags.content != "" {
		text, err := os.ReadFile(runFlags.content)
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		content = textstats.AnalyzeContent(string(text))
	}

	rt, err := openRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	serveMetrics(ctx, cfg.Metrics.Addr, logger)

	var lanes []session.Lane
	for _, id := range runFlags.sessions {
		sess, err := rt.openSession(id)
		if err != nil {
			return err
		}
		defer sess.Close()

		src, closeSrc, err := rt.openSource(id)
		if err != nil {
			return err
		}
		defer closeSrc()

		lanes = append(lanes, session.Lane{
			Session: sess,
			Source:  src,
			Inputs:  simulatedLearner(sessionSeed(cfg.Session.Seed, id), cfg.Session.Tick.Duration(), content),
		})
	}

	dc := session.DriverConfig{Tick: cfg.Session.Tick.Duration(), MaxCycles: cfg.Session.MaxCycles}
	if runFlags.maxCycles >= 0 {
		dc.MaxCycles = runFlags.maxCycles
	}
	logger.Info("driving sessions", zap.Strings("sessions", runFlags.sessions), zap.Int("max_cycles", dc.MaxCycles))

	stats, err := session.NewDriver(dc, logger, lanes...).Run(ctx)
	printLaneStats(cmd.OutOrStdout(), stats)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// #endregion command

// #region simulated-learner
// simulatedLearner produces plausible interaction summaries from a seeded
// stream. Elapsed session time advances one tick per cycle.
func simulatedLearner(seed uint64, tick time.Duration, content outcome.ContentAnalysis) session.InputProvider {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	if tick <= 0 {
		tick = time.Second
	}
	return session.InputFunc(func(_ context.Context, _ string, cycle int) (session.CycleInput, error) {
		mu.Lock()
		complexity := rng.Float64()
		typing := 0.2 + 0.6*rng.Float64()
		words := 5 + rng.IntN(80)
		mu.Unlock()

		return session.CycleInput{
			Scalars: features.Scalars{InputComplexity: complexity, TypingSpeed: typing},
			Interaction: update.InteractionSummary{
				InputLength: words * 6,
				TypingSpeed: typing,
				Complexity:  complexity,
				Elapsed:     time.Duration(cycle) * tick,
				WordCount:   words,
			},
			Content: content,
			Trigger: "simulated",
		}, nil
	})
}

// #endregion simulated-learner

// #region output
func printLaneStats(w io.Writer, stats map[string]session.LaneStats) {
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "%-20s  %7s  %6s\n", "Session", "Cycles", "Errors")
	fmt.Fprintf(w, "%-20s+-%7s+-%6s\n", "--------------------", "-------", "------")
	for _, id := range ids {
		fmt.Fprintf(w, "%-20s  %7d  %6d\n", id, stats[id].Cycles, stats[id].Errors)
	}
}

// #endregion output
