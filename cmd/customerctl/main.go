// Command customerctl runs customer service operations from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/customer/internal/domain/shared"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/erp/customer/internal/infrastructure/logger"
	"github.com/erp/customer/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		logLevel    string
		metricsFile string
		actor       string
	)
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file (default: ./config.toml if present)")
	flag.StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	flag.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flag.StringVar(&actor, "actor", os.Getenv("USER"), "Operator name recorded in logs")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		return 2
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     "stderr", // stdout carries command output
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
		Redact:     cfg.Log.Redact,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	if actor != "" {
		ctx = logger.WithActor(ctx, actor)
	}

	a, err := buildApp(ctx, cfg, log, wiringOptions{})
	if err != nil {
		log.Error("Failed to initialize services", zap.Error(err))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Warn("Error during shutdown", zap.Error(err))
		}
		if metricsFile != "" {
			if err := metrics.WriteTextfile(metricsFile, a.registry); err != nil {
				log.Warn("Failed to write metrics file", zap.String("path", metricsFile), zap.Error(err))
			}
		}
	}()

	err = dispatch(ctx, a, ioStreams{in: os.Stdin, out: os.Stdout}, flag.Args())
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		return 2
	default:
		logger.L(ctx).Error("Command failed",
			zap.String("command", flag.Arg(0)),
			zap.String("code", shared.ErrorCode(err)),
			zap.Error(err))
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Customer service operator tool

Usage:
  customerctl [flags] <command> [arguments]

Commands:`)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-14s %-26s %s\n", c.name, c.args, c.help)
	}
	fmt.Fprintln(os.Stderr, `
Flags:`)
	flag.PrintDefaults()
}
