// Command sweep runs one watchdog sweep and exits, for hosts that drive the
// sweeps from an external scheduler instead of the server's cron.
//
//	sweep --kind cutoff [--cutoff 19:00]
//	sweep --kind escalation [--dry-run]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/aristath/techclock/internal/config"
	"github.com/aristath/techclock/internal/di"
	"github.com/aristath/techclock/internal/modules/watchdog"
	"github.com/aristath/techclock/pkg/logger"
)

type options struct {
	kind   string
	dryRun bool
	cutoff string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.StringVar(&opts.kind, "kind", "", "sweep to run: cutoff or escalation")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "escalation only: report candidates without creating alerts")
	fs.StringVar(&opts.cutoff, "cutoff", "", "cutoff only: HH:MM overriding CUTOFF_TIME")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.kind {
	case "cutoff":
		if opts.dryRun {
			return opts, fmt.Errorf("--dry-run applies to the escalation sweep only")
		}
	case "escalation":
		if opts.cutoff != "" {
			return opts, fmt.Errorf("--cutoff applies to the cutoff sweep only")
		}
	default:
		return opts, fmt.Errorf("--kind must be cutoff or escalation, got %q", opts.kind)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode, Output: os.Stderr})

	if err := run(context.Background(), cfg, opts, log); err != nil {
		log.Error().Err(err).Str("kind", opts.kind).Msg("Sweep failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log zerolog.Logger) error {
	container, _, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer container.Close()

	var result interface{}
	switch opts.kind {
	case "cutoff":
		cutoff := container.Cutoff
		if opts.cutoff != "" {
			if cutoff, err = watchdog.ParseTimeOfDay(opts.cutoff); err != nil {
				return err
			}
		}
		result, err = container.Watchdog.RunCutoffSweep(ctx, cutoff)
	case "escalation":
		esc, escErr := container.SettingsService.Escalation(ctx)
		if escErr != nil {
			return escErr
		}
		result, err = container.Watchdog.RunEscalationSweep(ctx, watchdog.EscalationParams{
			Threshold:          esc.Threshold,
			Window:             esc.Window,
			ForgottenThreshold: esc.ForgottenThreshold,
			DryRun:             opts.dryRun,
		})
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
