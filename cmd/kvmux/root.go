package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jrife/kvmux/config"
	"github.com/jrife/kvmux/multiplex"
	"github.com/jrife/kvmux/utils/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "kvmux",
		Short:         "Read and write a multiplexed key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration file")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while the command runs")
	cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(
		newGetCommand(opts),
		newPutCommand(opts),
		newPostCommand(opts),
		newDeleteCommand(opts),
		newScanCommand(opts),
		newWatchCommand(opts),
	)

	return cmd
}

// withMultiplexer opens the multiplexer described by the
// configuration file, runs fn and closes the multiplexer
func withMultiplexer(ctx context.Context, opts *options, fn func(mux *multiplex.Multiplexer) error) error {
	cfg, err := config.Load(opts.configPath)

	if err != nil {
		return err
	}

	level := cfg.Log.Level

	if opts.logLevel != "" {
		level = opts.logLevel
	}

	logger, err := log.New(level, cfg.Log.Development)

	if err != nil {
		return err
	}

	defer logger.Sync()

	registry := prometheus.NewRegistry()
	multiplexConfig, cleanup, err := cfg.Build(logger, registry)

	if err != nil {
		return err
	}

	mux, err := multiplex.New(*multiplexConfig)

	if err != nil {
		cleanup()

		return err
	}

	defer func() {
		if err := mux.Close(); err != nil {
			logger.Error("could not close multiplexer", zap.Error(err))
		}
	}()

	if err := mux.Open(ctx); err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		server := &http.Server{Addr: opts.metricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()

		defer server.Close()
	}

	return fn(mux)
}

func printKV(out io.Writer, key string, value []byte) {
	fmt.Fprintf(out, "%s\t%s\n", key, value)
}

// notFound turns NotFound errors into a message
func notFound(out io.Writer, err error) error {
	if multiplex.IsNotFound(err) {
		fmt.Fprintln(out, "not found")

		return nil
	}

	return err
}
