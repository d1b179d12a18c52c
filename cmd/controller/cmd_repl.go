package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/session"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
	"github.com/danielpatrickdp/neuroadapt/internal/textstats"
)

// #region command
var replFlags struct {
	session string
	content string
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run one interactive session, one cycle per line of input",
	Long: "Each line typed is treated as the learner's response. Lines starting with\n" +
		"':content ' replace the learning material, ':traits' prints the current\n" +
		"traits, and 'quit' exits.",
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	replCmd.Flags().StringVar(&replFlags.session, "session", "default", "session ID to resume or create")
	replCmd.Flags().StringVar(&replFlags.content, "content", "", "file holding the learning material")
}

func runREPL(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.openSession(replFlags.session)
	if err != nil {
		return err
	}
	defer sess.Close()

	src, closeSrc, err := rt.openSource(replFlags.session)
	if err != nil {
		return err
	}
	defer closeSrc()

	r := &repl{session: sess, source: src, out: cmd.OutOrStdout(), now: time.Now, logger: logger}
	if replFlags.content != "" {
		text, err := os.ReadFile(replFlags.content)
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		r.setContent(string(text))
	}

	fmt.Fprintf(r.out, "Neuroadapt controller ready.\n  DB: %s | Session: %s | Cycle: %d\n",
		cfg.Store.Path, sess.ID(), sess.Cycles())
	fmt.Fprintln(r.out, "Type a response (or 'quit' to exit):")
	return r.loop(cmd.Context(), cmd.InOrStdin())
}

// #endregion command

// #region loop
type repl struct {
	session *session.Session
	source  signal.Source
	out     io.Writer
	now     func() time.Time
	logger  *zap.Logger

	content    *outcome.ContentAnalysis
	started    time.Time
	lastPrompt time.Time
}

func (r *repl) setContent(text string) {
	ca := textstats.AnalyzeContent(text)
	r.content = &ca
}

// loop reads lines until EOF, "quit" or cancellation. Cycle errors are
// reported and the loop continues.
func (r *repl) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	r.started = r.now()
	for {
		fmt.Fprint(r.out, "> ")
		r.lastPrompt = r.now()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case line == ":traits":
			printTraits(r.out, r.session.Snapshot())
			continue
		case strings.HasPrefix(line, ":content "):
			r.setContent(strings.TrimPrefix(line, ":content "))
			fmt.Fprintf(r.out, "content: clarity=%.3f complexity=%.3f structure=%.3f\n",
				r.content.Clarity, r.content.Complexity, r.content.Structure)
			continue
		}

		if err := r.cycle(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("cycle failed", zap.Error(err))
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (r *repl) cycle(ctx context.Context, line string) error {
	now := r.now()
	summary := textstats.SummarizeInteraction(line, now.Sub(r.lastPrompt), now.Sub(r.started))

	content := textstats.AnalyzeContent(line)
	if r.content != nil {
		content = *r.content
	}

	buf, err := r.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("read window: %w", err)
	}

	res, err := r.session.RunCycle(ctx, session.CycleInput{
		Buffer:      buf,
		Scalars:     features.Scalars{InputComplexity: summary.Complexity, TypingSpeed: summary.TypingSpeed},
		Interaction: summary,
		Content:     content,
		Trigger:     "repl",
	})
	if err != nil && res.VersionID == "" {
		return err
	}

	fmt.Fprintf(r.out, "[%d] decision=%s attention=%.3f load=%.3f comprehension=%.3f review=%dh\n",
		res.Cycle, res.Update.Decision.Action, res.Features.AttentionIndex, res.Features.CognitiveLoad,
		res.Outcomes.ComprehensionScore, res.Outcomes.OptimalReviewTime)
	// recorder failures arrive after the traits were updated
	return err
}

// #endregion loop

// #region output
func printTraits(w io.Writer, t state.Traits) {
	for _, n := range state.TraitNames {
		v, _ := t.Get(n)
		fmt.Fprintf(w, "  %-20s %.4f\n", n, v)
	}
}

// #endregion output
