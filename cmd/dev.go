package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/jensneuse/abstractlogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/composition"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/filewatcher"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/metrics"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/watcher"
)

const (
	flagMetricsAddr  = "metrics-addr"
	flagPollInterval = "poll-interval"
	flagDebounce     = "debounce"
)

const metricsShutdownTimeout = 5 * time.Second

// devCmd represents the dev command
var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Watches the subgraphs and recomposes the supergraph on every change",
	Long: `Composes the supergraph once and then watches the supergraph config and every subgraph.

File subgraphs are watched on disk, introspected subgraphs are polled.
Every successful composition is written to --output, failed compositions are logged
and the previous supergraph is kept. Stops on SIGINT or SIGTERM.`,
	Example: `supergraph dev -c supergraph.yaml -o supergraph.graphql --metrics-addr localhost:9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, sync, err := newLogger(viper.GetString(flagLogLevel))
		if err != nil {
			return err
		}
		defer sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		m, err := metrics.New(registry)
		if err != nil {
			return err
		}

		run, err := runStage(ctx, logger, cmd.InOrStdin(),
			composition.WithMetrics(m),
			composition.WithWatcherOptions(
				watcher.WithPollInterval(viper.GetDuration(flagPollInterval)),
				watcher.WithDebounce(viper.GetDuration(flagDebounce)),
			),
		)
		if err != nil {
			return err
		}
		runner, err := run.Runner()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		if addr := viper.GetString(flagMetricsAddr); addr != "" {
			g.Go(func() error {
				return serveMetrics(ctx, logger, addr, registry)
			})
		}
		g.Go(func() error {
			defer cancel()
			events, handle := runner.Run(ctx)
			defer handle.Cancel()
			handleEvents(cmd, logger, viper.GetString(flagOutput), events)
			return nil
		})
		return g.Wait()
	},
}

// handleEvents consumes composition events until the runner closes the channel.
func handleEvents(cmd *cobra.Command, logger log.Logger, output string, events <-chan composition.Event) {
	for event := range events {
		switch e := event.(type) {
		case composition.Started:
			logger.Debug("supergraph.dev", log.String("composition", "started"))
		case composition.Success:
			logHints(logger, e.Hints)
			if err := writeSupergraph(cmd.OutOrStdout(), output, e.SupergraphSDL); err != nil {
				logger.Error("supergraph.dev",
					log.String("output", output),
					log.Error(err),
				)
				continue
			}
			logger.Info("supergraph.dev",
				log.String("composition", "succeeded"),
				log.String("federationVersion", e.FederationVersion.String()),
			)
		case composition.Failure:
			if e.BuildErrors != nil {
				for _, buildError := range e.BuildErrors.Errors {
					logger.Error("supergraph.dev",
						log.String("code", buildError.Code),
						log.String("message", buildError.Message),
					)
				}
				continue
			}
			logger.Error("supergraph.dev",
				log.String("composition", "failed"),
				log.Error(e.Err),
			)
		}
	}
}

func serveMetrics(ctx context.Context, logger log.Logger, addr string, gatherer prometheus.Gatherer) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("supergraph.serveMetrics", log.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().String(flagMetricsAddr, "", "address prometheus metrics are served on, disabled when empty")
	devCmd.Flags().Duration(flagPollInterval, watcher.DefaultPollInterval, "interval introspected subgraphs are polled with")
	devCmd.Flags().Duration(flagDebounce, filewatcher.DefaultDebounce, "time file changes are debounced for")
	_ = viper.BindPFlag(flagMetricsAddr, devCmd.Flags().Lookup(flagMetricsAddr))
	_ = viper.BindPFlag(flagPollInterval, devCmd.Flags().Lookup(flagPollInterval))
	_ = viper.BindPFlag(flagDebounce, devCmd.Flags().Lookup(flagDebounce))
}
