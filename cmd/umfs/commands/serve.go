package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	internal "github.com/ZanzyTHEbar/undo-memfs/umfs"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/config"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/diag"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/fusefs"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/ports"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/shell"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var (
	flagMountPoint   string
	flagLogLevel     string
	flagMetricsAddr  string
	flagJournalDepth int
	flagAllowOther   bool
	flagDebug        bool
	flagNoShell      bool
)

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagMountPoint, "mountpoint", "m", "", "directory to mount on (default: "+internal.DefaultMountPoint+")")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve /metrics, /health and /history on this address")
	cmd.Flags().IntVar(&flagJournalDepth, "journal-depth", 0, "maximum undo history depth, 0 for unbounded")
	cmd.Flags().BoolVar(&flagAllowOther, "allow-other", false, "allow other users to access the mount")
	cmd.Flags().BoolVar(&flagDebug, "fuse-debug", false, "log every FUSE request")
	cmd.Flags().BoolVar(&flagNoShell, "no-shell", false, "serve the mount without the interactive shell, until interrupted")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Used until the configured level is known
	boot := internal.GetLogger()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		boot.Error().Err(err).Str("config", cfgFile).Msg("Loading configuration failed")
		return err
	}
	applyFlagOverrides(cmd, cfg, args)
	if err := cfg.Validate(); err != nil {
		boot.Error().Err(err).Str("config", cfgFile).Msg("Configuration rejected after flag overrides")
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := internal.NewLogger(os.Stderr, cfg.Logging.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	fs := filesystem.New(
		filesystem.WithLogger(logger),
		filesystem.WithMetrics(common.NewOperationMetrics(reg)),
		filesystem.WithJournalDepth(cfg.Journal.MaxDepth),
		filesystem.WithStatfs(cfg.Statfs.ToTypes()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		return fusefs.Mount(ctx, fs, fusefs.MountOptions{
			Point:      cfg.Mount.Point,
			AllowOther: cfg.Mount.AllowOther,
			Debug:      cfg.Mount.Debug,
			FsName:     cfg.Mount.FsName,
		}, logger)
	})

	if cfg.Metrics.Address != "" {
		srv := diag.NewServer(cfg.Metrics.Address, reg, fs, logger)
		p.Go(srv.Start)
	}

	if !flagNoShell {
		p.Go(func(ctx context.Context) error {
			// Leaving the shell ends the session
			defer cancel()
			sh := shell.New(fs, shell.Stdio(cfg.Mount.Point), ports.NewTerminal(os.Stdout, os.Stderr),
				shell.WithPrompt(cfg.Shell.Prompt, os.Stdout),
				shell.WithLogger(logger),
			)
			return sh.Run(ctx, os.Stdin)
		})
	}

	return p.Wait()
}

// applyFlagOverrides lets explicitly set flags and the positional mount
// point win over the config file and environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, args []string) {
	flags := cmd.Flags()
	if len(args) == 1 {
		cfg.Mount.Point = args[0]
	}
	if flags.Changed("mountpoint") {
		cfg.Mount.Point = flagMountPoint
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = flagMetricsAddr
	}
	if flags.Changed("journal-depth") {
		cfg.Journal.MaxDepth = flagJournalDepth
	}
	if flags.Changed("allow-other") {
		cfg.Mount.AllowOther = flagAllowOther
	}
	if flags.Changed("fuse-debug") {
		cfg.Mount.Debug = flagDebug
	}
}
