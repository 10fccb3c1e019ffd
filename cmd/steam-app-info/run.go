package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kula-app/steam-app-info/internal/appid"
	"github.com/kula-app/steam-app-info/internal/config"
	"github.com/kula-app/steam-app-info/internal/logging"
	"github.com/kula-app/steam-app-info/internal/lookup"
	"github.com/kula-app/steam-app-info/internal/steam"
)

const usage = `Query Steam product info for one or more apps.

Usage:
  %s [flags] <app-id> [<app-id> ...]

Opens an anonymous session against the PICS gateway, requests all app ids
in a single batch and prints the result as indented JSON on stdout.

Flags:
`

// The run function is like the main function, except that it takes in operating system fundamentals as arguments, and returns an error.
//
// If the run function finishes without an error, the result has been written to stdout.
// If the run function returns an error, nothing has been written to stdout.
//
// The logic of the run function must stay isolated so it can be tested in parallel.
func run(ctx context.Context, args []string, getenv func(key string) string, stdout, stderr io.Writer) error {
	// Defaults, then environment, then flags
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(getenv); err != nil {
		return err
	}

	// Parse command-line flags
	flags := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, usage, args[0])
		flags.PrintDefaults()
	}
	flags.StringVar(&cfg.GatewayURL, "gateway", cfg.GatewayURL, "PICS gateway base URL (env "+config.EnvGateway+")")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "deadline for the whole network exchange (env "+config.EnvTimeout+")")
	flags.StringVarP(&cfg.Format, "format", "o", cfg.Format, "output format: json or yaml")
	flags.BoolVar(&cfg.Summary, "summary", cfg.Summary, "print the save and launch digest of each app instead of the raw result")
	flags.StringVar(&cfg.CacheFile, "cache", cfg.CacheFile, "YAML cache file to merge digests into (env "+config.EnvCacheFile+")")
	flags.BoolVar(&cfg.Outdated, "outdated", cfg.Outdated, "also query every cache entry marked outdated")
	logLevel := flags.String("log-level", cfg.LogLevel.String(), "stderr log level: debug, info, warn or error (env "+config.EnvLogLevel+")")
	if err := flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	level, err := config.ParseLogLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg.LogLevel = level

	// Every identifier must parse before any network activity happens
	ids, err := appid.Parse(flags.Args())
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Derive a context that is canceled on OS interrupt/termination and bounded
	// by the configured timeout.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	logger := slog.New(logging.NewTerminalHandler(stderr, cfg.LogLevel))

	logger.Debug("configuration loaded",
		"gateway", cfg.GatewayURL,
		"timeout", cfg.Timeout,
		"format", cfg.Format,
		"summary", cfg.Summary,
		"cache_file", cfg.CacheFile,
		"outdated", cfg.Outdated,
		"app_ids", ids)

	dialer, err := steam.NewGatewayDialer(cfg.GatewayURL, &http.Client{}, logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}

	return lookup.NewLookup(dialer, logger, cfg).Run(ctx, ids, stdout)
}
