package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcmartin/siteserver/pkg/accesslog"
	"github.com/tcmartin/siteserver/pkg/api"
	"github.com/tcmartin/siteserver/pkg/config"
	"github.com/tcmartin/siteserver/pkg/logging"
	"github.com/tcmartin/siteserver/pkg/views"
)

// shutdownTimeout bounds graceful shutdown, including draining the access log
const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, os.LookupEnv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			app, err := NewApp(cfg, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.Run()
		},
	}
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port to listen on (overrides config and $PORT)")
	return cmd
}

func newRoutesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the request pipeline and route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, os.LookupEnv)
			if err != nil {
				return err
			}

			s := api.NewServer(api.Options{Config: cfg, Sink: discardSink{}, Console: io.Discard})
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Stages:")
			for i, name := range s.Stages() {
				fmt.Fprintf(out, "  %d. %s\n", i+1, name)
			}
			fmt.Fprintln(out, "Routes:")
			for _, r := range s.Routes() {
				fmt.Fprintf(out, "  %-6s %s\n", r.Method, r.Path)
			}
			return nil
		},
	}
}

// loadConfig reads the config file when one is given, then applies the environment
func loadConfig(path string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// httpServer is the part of api.Server the application drives
type httpServer interface {
	Start() error
	Stop(ctx context.Context) error
}

// App represents the siteserver application
type App struct {
	config    *config.Config
	server    httpServer
	sink      *accesslog.FileSink
	logger    logging.Logger
	logCloser io.Closer
}

// NewApp creates a new application instance. console receives one line per request.
func NewApp(cfg *config.Config, console io.Writer) (*App, error) {
	logger, logCloser, err := logging.NewLogger(logConfig(cfg.Logging))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	renderer, err := views.New(cfg.Site)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	sink, err := accesslog.Open(cfg.AccessLog, logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	server := api.NewServer(api.Options{
		Config:  cfg,
		Views:   renderer,
		Sink:    sink,
		Console: console,
		Logger:  logger,
	})

	return &App{
		config:    cfg,
		server:    server,
		sink:      sink,
		logger:    logger,
		logCloser: logCloser,
	}, nil
}

// Run starts the server and blocks until it fails or a shutdown signal arrives
func (a *App) Run() error {
	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	select {
	case err := <-errCh:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := a.Stop(ctx); stopErr != nil {
			a.logger.Error("Error during shutdown", logging.Err(stopErr))
		}
		return err
	case <-stop:
		a.logger.Info("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Stop(ctx)
	}
}

// Start starts the application
func (a *App) Start() error {
	a.logger.Info(fmt.Sprintf("Starting %s version %s", AppName, AppVersion),
		logging.F("port", a.config.Server.Port))
	return a.server.Start()
}

// Stop stops the server, then drains and closes the access log and the
// diagnostic log. Every step runs even if an earlier one fails.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}

	if err := a.sink.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close access log: %w", err))
	}

	a.logger.LogSystemEvent("server_stopped", nil)
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
	}
	return errors.Join(errs...)
}

// logConfig maps the logging section of the config file onto the logger
func logConfig(cfg config.LoggingConfig) logging.LogConfig {
	return logging.LogConfig{
		Level:         cfg.Level,
		Format:        cfg.Format,
		Output:        cfg.Output,
		FilePath:      cfg.FilePath,
		IncludeCaller: cfg.IncludeCaller,
	}
}

type discardSink struct{}

func (discardSink) Append(string) {}
