// Command gatewayip keeps a Cloudflare Zero Trust gateway location pointed at a dynamic DNS hostname.
//
// Configuration is read from the environment, an optional .env file
// (GATEWAYIP_ENV_FILE, default ".env") and flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Travis-Britz/gatewayip"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal("gatewayip", "err", err)
	}
}

func run(args []string) error {
	envFile := os.Getenv("GATEWAYIP_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}

	cfg, err := loadConfig(args, os.LookupEnv)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg)
	defer closeLog()
	logger.Debug("config loaded", "command", cfg.command, "hostname", cfg.Hostname, "lookup", cfg.lookup())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.command {
	case "run":
		return runOnce(ctx, cfg, logger)
	case "serve":
		return serve(ctx, cfg, logger)
	case "setup":
		return runSetup(ctx, cfg, logger)
	case "verify":
		token, err := apiToken(cfg, logger)
		if err != nil {
			return err
		}
		return verifyAPIToken(ctx, token, cfg.Timeout, logger)
	case "service":
		return controlService(cfg, logger)
	}
	return fmt.Errorf("unknown command %q", cfg.command)
}

func newLogger(cfg config) (*log.Logger, func()) {
	var w io.Writer = os.Stderr
	closer := func() {}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotator)
		closer = func() { rotator.Close() }
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "gatewayip",
	})
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger, closer
}

func newClient(cfg config, logger *log.Logger) (*gatewayip.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	token, err := apiToken(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []gatewayip.Option{
		gatewayip.UsingCloudflare(cfg.AccountID, token),
		gatewayip.UsingHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		gatewayip.WithLogger(logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel})),
		gatewayip.NotifyOnNoop(cfg.NotifyNoop),
	}

	switch {
	case cfg.IP != "":
		r, err := gatewayip.FromString(cfg.IP)
		if err != nil {
			return nil, err
		}
		logger.Warn("using a fixed address instead of resolving", "ip", cfg.IP)
		opts = append(opts, gatewayip.UsingResolver(r))
	case cfg.Iface != "":
		r, err := gatewayip.InterfaceResolver(cfg.Iface)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gatewayip.UsingResolver(r))
	case cfg.DoHWire:
		r, err := gatewayip.DoHWireResolver(cfg.Hostname, cfg.DoHURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gatewayip.UsingResolver(r))
	default:
		r, err := gatewayip.DoHResolver(cfg.Hostname, cfg.DoHURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gatewayip.UsingResolver(r))
	}

	allow, ok, err := cfg.allowList()
	if err != nil {
		return nil, err
	}
	if ok {
		logger.Debug("allow-list enabled", "entries", allow.Entries())
		opts = append(opts, gatewayip.WithAllowList(allow))
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		opts = append(opts, gatewayip.UsingTelegram(cfg.TelegramToken, cfg.TelegramChatID))
	} else {
		logger.Warn("TELEGRAM_TOKEN or TELEGRAM_CHAT_ID is not set; notifications are disabled")
	}

	return gatewayip.New(cfg.Hostname, cfg.lookup(), opts...)
}

func runOnce(ctx context.Context, cfg config, logger *log.Logger) error {
	client, err := newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("error creating gatewayip client: %w", err)
	}
	result := client.Reconcile(ctx)
	if result.NotifyErr != nil {
		logger.Warn("notification failed", "err", result.NotifyErr)
	}
	fmt.Println(result.Message)
	if result.Kind == gatewayip.Failed {
		return fmt.Errorf("run %s: %w", result.RunID, result.Err)
	}
	return nil
}

// serve runs the scheduler and, when configured, the HTTP trigger until ctx is done.
func serve(ctx context.Context, cfg config, logger *log.Logger) error {
	client, err := newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("error creating gatewayip client: %w", err)
	}
	info := logger.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("scheduler started", "interval", cfg.Interval)
		gatewayip.RunDaemon(ctx, client, cfg.Interval, info)
		return nil
	})

	if cfg.Listen != "" {
		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           gatewayip.Handler(client, info),
			ReadHeaderTimeout: 5 * time.Second,
			// a run makes up to four requests, each bounded by cfg.Timeout
			WriteTimeout: 5*cfg.Timeout + 10*time.Second,
		}
		g.Go(func() error {
			logger.Info("serving HTTP trigger", "addr", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}
