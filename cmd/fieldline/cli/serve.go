package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fieldlinehq/fieldline/internal/gateway"
	"github.com/fieldlinehq/fieldline/internal/ratelimit"
	"github.com/fieldlinehq/fieldline/internal/server"
	"github.com/fieldlinehq/fieldline/internal/service"
	"github.com/fieldlinehq/fieldline/internal/tools"
	"github.com/fieldlinehq/fieldline/internal/webhook"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Fieldline server",
		Long:  "Start the HTTP server hosting the MCP tool gateway and the management REST API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logLevel := parseLogLevel(cfg.Logging.Level)
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", cfg.Database.Driver)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "fieldline-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set, using insecure development default")
	}

	notifier := webhook.New(logger)
	defer notifier.Flush()

	authSvc := service.NewAuthService(st, notifier, logger, jwtSecret,
		cfg.RateLimit.WindowDuration(), cfg.RateLimit.MaxRequests)
	limiter := ratelimit.New(st)

	registry, err := tools.NewRegistry(st)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}
	logger.Info("tool registry initialized", "tools", len(registry.Definitions()))

	gw := gateway.New(authSvc, limiter, registry, logger,
		cfg.Gateway.AllowedOrigins, "fieldline", appVersion)

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
		CORSOrigins:     cfg.Server.CORSOrigins,
		SessionTTL:      cfg.Auth.SessionTTLDuration(),
		LoginRatePerMin: server.DefaultConfig().LoginRatePerMin,
	}
	srv := server.New(srvCfg, st, authSvc, gw, logger)
	return srv.ListenAndServe()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
