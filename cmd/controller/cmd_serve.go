package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/neuroadapt/internal/codec"
	"github.com/danielpatrickdp/neuroadapt/internal/config"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
)

// #region command
var serveCmd = &cobra.Command{
	Use:   "serve-acquisition",
	Short: "Serve synthetic signal windows over gRPC",
	Long: "serve-acquisition listens on acquisition.listen and answers ReadWindow with\n" +
		"one seeded synthetic stream per session. Point acquisition.addr of another\n" +
		"controller at it to exercise the remote source.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Acquisition.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Acquisition.Listen, err)
	}

	srv := grpc.NewServer()
	codec.RegisterAcquisitionServer(srv, codec.NewServer(syntheticFactory(cfg), logger))

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info("acquisition listening", zap.String("addr", lis.Addr().String()))
	fmt.Fprintf(cmd.OutOrStdout(), "Acquisition bridge listening on %s\n", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// #endregion command

// #region source-factory
// syntheticFactory opens one generator per session, seeded from the session ID.
// A zero length selects the configured buffer length.
func syntheticFactory(c config.Config) codec.SourceFactory {
	return func(sessionID string, length int) (signal.Source, error) {
		sc := c.SyntheticConfig()
		if length > 0 {
			sc.Length = length
		}
		sc.Seed = sessionSeed(sc.Seed, sessionID)
		return signal.NewSyntheticSource(sc), nil
	}
}

// #endregion source-factory
