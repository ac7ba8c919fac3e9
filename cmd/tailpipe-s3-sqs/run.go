package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/turbot/pipe-fittings/cmdconfig"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/config"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/internal_events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/sink"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Consume the queue until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runRunCmd,
	}

	cmdconfig.OnCmd(cmd).
		AddStringFlag(flagConfig, defaultConfigPath, "Path to the config file").
		AddStringFlag(flagOutput, "", "File to append decoded lines to (default stdout)").
		AddStringFlag(flagMetricsListen, "", "Address to serve Prometheus metrics on, e.g. :9090")

	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(viper.GetString(flagConfig))
	if err != nil {
		return err
	}

	out, err := newSink(viper.GetString(flagOutput), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if addr := viper.GetString(flagMetricsListen); addr != "" {
		stopMetrics := serveMetrics(addr)
		defer stopMetrics()
	}

	coordinator, err := newCoordinator(ctx, cfg)
	if err != nil {
		return err
	}
	if err := coordinator.AddObserver(out); err != nil {
		return err
	}
	return coordinator.Run(ctx)
}

func newSink(path string, stdout io.Writer) (*sink.WriterSink, error) {
	if path == "" {
		return sink.NewWriterSink(stdout), nil
	}
	return sink.NewFileSink(path)
}

// serveMetrics serves the internal event counters until the returned func is called
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(internal_events.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		slog.Info("serving metrics", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
