// Command svmmapper is a Hadoop streaming mapper: it reads image keys from
// stdin, runs each through the GPU classifier once, and echoes finished keys
// to stdout. Diagnostics go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"svmmapper/internal/api"
	"svmmapper/internal/compute"
	"svmmapper/internal/config"
	"svmmapper/internal/metrics"
	"svmmapper/internal/store"
	"svmmapper/internal/task"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "svmmapper",
	Short: "Run the GPU classifier over image keys read from stdin",
	Long: `svmmapper reads one object key per line from stdin. For each key whose
output is not yet in the sink bucket it downloads the image, bounds its size,
runs the classifier binary and uploads the result. Finished and already
finished keys are echoed to stdout.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMapper,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yml", "Path to the YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("mapper failed")
		os.Exit(1)
	}
}

func runMapper(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	runID := uuid.NewString()
	log.Logger = log.With().Str("run_id", runID).Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := buildGateway(ctx, cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	pipeline := task.NewPipeline(task.Options{
		StagingRoot:  cfg.StagingRoot,
		Executable:   cfg.Executable,
		ModelPath:    cfg.ModelPath,
		MaxDimension: cfg.MaxDimension,
		Env:          cfg.Env(),
		Mapper: task.Mapper{
			SourceSuffix:  cfg.SourceSuffix,
			OutputSuffix:  cfg.OutputSuffix,
			SourceSegment: cfg.SourceSegment,
			DestSegment:   cfg.DestSegment,
		},
	}, gateway, compute.NewInvoker(os.Stderr), m)

	if cfg.StatusAddr != "" {
		srv := startStatusServer(cfg.StatusAddr, api.NewAPI(runID, pipeline, m.Handler()))
		defer shutdownStatusServer(srv)
	}

	log.Info().Str("staging_root", cfg.StagingRoot).Str("executable", cfg.Executable).
		Int("max_dimension", cfg.MaxDimension).Msg("mapper started")

	summary, err := pipeline.Run(ctx, os.Stdin, os.Stdout)
	log.Info().
		Int("received", summary.Received).
		Int("completed", summary.Completed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("mapper finished")
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("interrupted, stopping before next task")
	}
	return err
}

func setLogLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

func buildGateway(ctx context.Context, cfg config.Config) (store.Gateway, error) { //nolint:ireturn
	var base store.Gateway
	if cfg.LocalStore != "" {
		log.Info().Str("root", cfg.LocalStore).Msg("using local object store")
		base = store.NewDirGateway(cfg.LocalStore)
	} else {
		client, err := store.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init s3 client: %w", err)
		}
		base = store.NewS3Gateway(client, cfg.SourceBucket, cfg.SinkBucket)
	}
	return store.NewRetrying(base, cfg.FetchRetries), nil
}

func startStatusServer(addr string, handler *api.API) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter()
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("status server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("status server listening")
	return srv
}

func shutdownStatusServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("status server shutdown warning")
	}
}
