package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jira_bridge/internal/config"
	"jira_bridge/internal/jira"
	"jira_bridge/internal/logger"
	mcpserver "jira_bridge/internal/service/mcp-server"
)

var (
	flagTransport string
	flagHost      string
	flagPort      int
	flagPath      string
	flagConfig    string
	flagVerbosity int

	rootCmd = &cobra.Command{
		Use:   "jira-bridge",
		Short: "MCP server bridging AI clients to Jira, including legacy Server 6.x",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.Flags().StringVar(&flagTransport, "transport", mcpserver.TransportStdio, "Transport: stdio, sse or streamable-http")
	rootCmd.Flags().StringVar(&flagHost, "host", "127.0.0.1", "Listen address for HTTP transports")
	rootCmd.Flags().IntVar(&flagPort, "port", 8000, "Listen port for HTTP transports")
	rootCmd.Flags().StringVar(&flagPath, "path", "/mcp", "Endpoint path for the streamable-http transport")
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Path to optional YAML configuration file")
	rootCmd.Flags().CountVarP(&flagVerbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level := logger.Level(flagVerbosity, cfg.Verbose, cfg.VeryVerbose)
	if err := logger.Init(level, cfg.LoggingStdout); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.GetLogger()

	client, err := jira.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("initialize jira client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Confirm credentials up front in debug mode so misconfiguration shows
	// before the first tool call.
	if level == zap.DebugLevel {
		if user, err := client.Myself(ctx); err != nil {
			log.Warn("authentication validation failed, continuing anyway", zap.Error(err))
		} else {
			log.Info("authenticated to jira", zap.String("display_name", user.DisplayName))
		}
	}

	srv, err := mcpserver.NewServer(client, cfg)
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}

	log.Info("starting jira bridge",
		zap.String("transport", flagTransport),
		zap.String("mode", string(cfg.Mode)))

	serveErr := mcpserver.Serve(ctx, srv, mcpserver.ServeOptions{
		Transport: flagTransport,
		Host:      flagHost,
		Port:      flagPort,
		Path:      flagPath,
	})

	// Invalidate the cookie session on the way out regardless of how the
	// transport stopped.
	logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Logout(logoutCtx); err != nil {
		log.Warn("error during session logout", zap.Error(err))
	}

	return serveErr
}
