package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fern/config"
	docs "fern/internal/app/docs"
	"fern/internal/app/router"
	reportmod "fern/internal/module/report"
	ldapc "fern/internal/pkg/client/ldap"
	"fern/internal/pkg/client/slurm"
	"fern/internal/pkg/client/slurm/models"
	slurmdbc "fern/internal/pkg/client/slurmdb"
	"fern/internal/pkg/client/users"
	"fern/internal/pkg/featexpr"
	"fern/internal/pkg/log"
	"fern/internal/pkg/report"
)

// @title           fern
// @version         0.1.0
// @description     Slurm node feature reporting
// @schema			http
// @BasePath        /api/v1
func main() {
	var (
		exprArgs   = kingpin.Arg("expression", "Boolean feature expression (and/or/not, parentheses); empty selects every node").Strings()
		gresFlag   = kingpin.Flag("gres", "Match the expression against GRES type names instead of features").Short('g').Bool()
		nodeLists  = kingpin.Flag("node-lists", "Append the sorted node names to every line").Short('n').Bool()
		listFlag   = kingpin.Flag("list", "List every known feature and GRES type token, then exit").Short('l').Bool()
		summarize  = kingpin.Flag("summarize", "Sub-tally running jobs per bucket").Short('s').Envar("FERN_SUMMARIZE").Enum("partition", "user")
		verbose    = kingpin.Flag("verbose", "Keep sub-buckets that duplicate their parent").Short('v').Bool()
		jobsSince  = kingpin.Flag("jobs-since", "Tally accounting-database jobs active within this window instead of the running ones (e.g. 24h)").Duration()
		serveAddr  = kingpin.Flag("serve", "Listen address; run the HTTP API instead of printing one report").PlaceHolder(":8080").Envar("FERN_SERVE").String()
		configFile = kingpin.Flag("config", "Path to YAML config file").Short('c').Envar("FERN_CONFIG").String()
		logFormat  = kingpin.Flag("log-format", "Log format").Default("text").Envar("FERN_LOG_FORMAT").Enum("text", "json")
		logOutput  = kingpin.Flag("log-output", "Log output destination").Default("stderr").Envar("FERN_LOG_OUTPUT").Enum("stdout", "stderr", "file")
		logFile    = kingpin.Flag("log-file", "Log file path (used when --log-output=file)").Envar("FERN_LOG_FILE").String()
		logLevel   = kingpin.Flag("log-level", "Minimum log level").Default("warn").Envar("FERN_LOG_LEVEL").Enum("debug", "info", "warn", "error")
	)
	kingpin.Version(version.Print("fern"))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger, cleanup, err := log.NewLogger(*logOutput, *logFormat, *logFile, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	expression := strings.Join(*exprArgs, " ")
	if *listFlag && (expression != "" || *summarize != "" || *gresFlag || *nodeLists || *verbose || *jobsSince > 0) {
		kingpin.Fatalf("--list cannot be combined with an expression or report flags")
	}
	if *jobsSince > 0 && *summarize == "" {
		kingpin.Fatalf("--jobs-since requires --summarize")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configFile), slog.Any("err", err))
		os.Exit(1)
	}

	client := slurm.New(logger)
	slurm.SetDefault(client)

	if *serveAddr != "" {
		cfg.Server.Addr = *serveAddr
		serve(cfg, logger)
		return
	}

	ctx := context.Background()

	if *listFlag {
		nodes, err := client.GetNodes(ctx)
		if err != nil {
			logger.Error("failed to load node snapshot", slog.Any("err", err))
			os.Exit(1)
		}
		features, gresTypes := report.Tokens(nodes)
		report.WriteTokens(os.Stdout, features, gresTypes)
		return
	}

	expr, err := featexpr.Parse(expression)
	if err != nil {
		kingpin.Fatalf("invalid expression: %v", err)
	}

	nodes, err := client.GetNodes(ctx)
	if err != nil {
		logger.Error("failed to load node snapshot", slog.Any("err", err))
		os.Exit(1)
	}

	mode := report.ModeFeature
	if *gresFlag {
		mode = report.ModeGres
	}
	rep := report.Build(nodes, expr, mode)

	s := &report.Summarizer{Nodes: nodes, CountBy: report.CountBy(*summarize), Logger: logger}
	if s.CountBy != report.CountByNone {
		jobs, err := loadJobs(ctx, cfg, logger, client, *jobsSince)
		if err != nil {
			logger.Error("failed to load jobs", slog.Any("err", err))
			os.Exit(1)
		}
		s.JobsByNode = jobs.ByNode()
		if s.CountBy == report.CountByUser {
			resolve, closeResolver := newResolver(cfg, logger)
			defer closeResolver()
			s.Resolve = resolve
		}
	}

	e := report.Emit(ctx, rep, s, report.Options{Verbose: *verbose, NodeLists: *nodeLists})
	report.WriteText(os.Stdout, e)
}

// loadJobs returns the job set the sub-tallies count: the currently running
// jobs from squeue, or the accounting-database jobs active within the
// jobs-since window when one is given.
func loadJobs(ctx context.Context, cfg *config.Config, logger *slog.Logger, client *slurm.Client, since time.Duration) (models.Jobs, error) {
	if since <= 0 {
		return client.GetRunningJobs(ctx)
	}
	db, err := slurmdbc.New(cfg.Slurmdb, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to the accounting database: %w", err)
	}
	defer db.Close()
	return db.GetJobsSince(ctx, time.Now().Add(-since))
}

// newResolver builds the uid resolver for the user sub-tally: the static
// users document first, an optional LDAP fallback behind it. Both sources
// are best-effort; the resolver itself degrades to user_<uid> labels.
func newResolver(cfg *config.Config, logger *slog.Logger) (func(context.Context, int) string, func()) {
	byUID, err := users.Load(cfg.Users.Path)
	if err != nil {
		logger.Warn("users document unavailable", "path", cfg.Users.Path, "err", err)
	}

	var lookup users.UIDLookup
	closeResolver := func() {}
	if cfg.Users.LDAPFallback {
		lcli, err := ldapc.New(cfg.LDAP)
		if err != nil {
			logger.Warn("ldap fallback unavailable", "err", err)
		} else {
			lookup = lcli
			closeResolver = lcli.Close
		}
	}
	return users.NewResolver(byUID, lookup, logger).Resolve, closeResolver
}

// serve runs the HTTP API with graceful shutdown.
func serve(cfg *config.Config, logger *slog.Logger) {
	resolve, closeResolver := newResolver(cfg, logger)
	defer closeResolver()
	reportmod.SetResolver(resolve)

	r := router.New()
	docs.SwaggerInfo.BasePath = "/api/v1"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.Register(
		reportmod.Router{},
	)
	router.MountAll(r)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	case <-quit:
		// proceed to shutdown
	}
	logger.Info("shutting down server...")

	to, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil || to <= 0 {
		to = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), to)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
}
