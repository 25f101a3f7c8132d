package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querylab/workspace-export/internal/csvfile"
	"github.com/querylab/workspace-export/internal/engine/sqlengine"
	"github.com/querylab/workspace-export/internal/export"
	"github.com/querylab/workspace-export/internal/metrics"
	"github.com/querylab/workspace-export/internal/progress"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/sqllimit"
	"github.com/querylab/workspace-export/pkg/restapi"
	"github.com/querylab/workspace-export/pkg/resultsbackend"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	// Register the sqlite driver, so query records pointing at sqlite
	// databases replay out of the box.
	_ "modernc.org/sqlite"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Listen to termination signals.
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Initialize config.
	config, err := LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config cannot be loaded")
	}

	// Initialize logger.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if config.LogFormat == PrettyLogFormat {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid log level")
	}

	zlog.Logger = zlog.Logger.Level(lvl)
	logger := zlog.Logger

	// Load AWS credentials.
	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		// Load AWS config with credentials when AccessKeyID is not empty.
		// Otherwise, we let SDK to pick credentials from available sources automatically.
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}

	awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load AWS config")
	}

	// Initialize storages.
	dynamodbClient := dynamodb.NewFromConfig(awsConfig)
	recordRepo := queryrecord.NewRepository(dynamodbClient, config.AWS.QueryRecordsTableName)

	var backend export.ResultsBackend
	if config.ResultsBackend.URL != "" {
		backend = resultsbackend.NewClient(config.ResultsBackend.URL, config.ResultsBackend.Token, config.ResultsBackend.MaxRPS)
	} else {
		zlog.Info().Msg("results backend is not configured, standard exports always replay queries")
	}

	// Track progress of streaming exports.
	tracker := progress.NewTracker()

	janitor := progress.NewJanitor(logger, tracker, config.Progress.JanitorSchedule, config.Progress.Retention)
	err = janitor.Start(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("progress janitor cannot be started")
	}

	// Create exporters and the coordinator.
	csvOptions := csvfile.Options{
		UseCRLF: config.Workspace.CSVUseCRLF,
		BOM:     config.Workspace.CSVWriteBOM,
	}
	if config.Workspace.CSVDelimiter != "" {
		csvOptions.Comma = []rune(config.Workspace.CSVDelimiter)[0]
	}

	opener := sqlengine.NewOpener()
	resolver := sqllimit.NewResolver(nil)

	standard := export.NewStandardExporter(logger, backend, opener, resolver, csvOptions)
	streaming := export.NewStreamingExporter(logger, opener, resolver, tracker, csvOptions)

	coordinator := export.NewCoordinator(
		logger,
		recordRepo,
		export.AllowAllChecker{},
		standard,
		streaming,
		config.Workspace.Root,
		metrics.NewExportPipelineExporter(),
	)

	// Initialize the REST server.
	router := restapi.NewRouter(restapi.RouterOpts{
		Runner:   coordinator,
		Progress: tracker,
		Timeout:  config.API.ServerTimeout,
	})

	srv := &http.Server{
		Addr:              config.API.ListeningAddress,
		Handler:           router,
		ReadTimeout:       20 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		zlog.Info().Str("address", config.API.ListeningAddress).Msg("starting the server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server listen failed")
		}
	}()

	// Export Prometheus metrics.
	go func() {
		zlog.Info().Str("address", config.PrometheusExportAddress).Msg("starting the prometheus exporter")

		metricSrv := &http.Server{
			Addr:              config.PrometheusExportAddress,
			Handler:           http.DefaultServeMux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		}

		http.DefaultServeMux.Handle("/metrics", promhttp.Handler())
		err := metricSrv.ListenAndServe()
		if err != nil {
			zlog.Error().Err(err).Msg("prometheus exporter failed")
		}
	}()

	<-stop
	cancel()

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdown()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
}
