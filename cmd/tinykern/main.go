package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/evanphx/tinykern/kernel"
	clog "github.com/evanphx/tinykern/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	config   string
	maxProc  int
	logLevel string
	debug    bool

	fanout int
	depth  int
	hold   time.Duration
	dump   bool
}

func addTreeFlags(fs *pflag.FlagSet, o *options) {
	fs.IntVar(&o.fanout, "fanout", 2, "children spawned by every inner process")
	fs.IntVar(&o.depth, "depth", 2, "depth of the process tree below init")
	fs.DurationVar(&o.hold, "hold", 50*time.Millisecond, "how long leaves stay alive before writing")
	fs.BoolVar(&o.dump, "dump", false, "dump every procinfo record")
}

func newRootCmd() *cobra.Command {
	var o options

	root := &cobra.Command{
		Use:   "tinykern",
		Short: "Boot a kernel, run a process tree under init and show the process table",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case o.debug:
				clog.EnableDebug()
			case os.Getenv("TRACE") == "":
				clog.SetLevel(o.logLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}

			return runTree(cmd.Context(), cmd.OutOrStdout(), cfg, &o)
		},
	}

	root.PersistentFlags().StringVarP(&o.config, "config", "c", "", "path to a YAML kernel config")
	root.PersistentFlags().IntVar(&o.maxProc, "max-proc", 0, "process table capacity (overrides the config)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "debug logging (trace when TRACE is set)")

	addTreeFlags(root.Flags(), &o)

	root.SilenceUsage = true

	return root
}

func loadConfig(cmd *cobra.Command, o *options) (kernel.Config, error) {
	cfg := kernel.DefaultConfig()

	if o.config != "" {
		var err error

		cfg, err = kernel.LoadConfig(o.config)
		if err != nil {
			return cfg, err
		}

		if o.logLevel == "" && !o.debug && os.Getenv("TRACE") == "" {
			clog.SetLevel(cfg.LogLevel)
		}
	}

	if cmd.Flags().Changed("max-proc") {
		cfg.MaxProc = o.maxProc
	}

	return cfg, cfg.Validate()
}

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			clog.L.Error("could not create CPU profile", "error", err)
			os.Exit(1)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			clog.L.Error("could not start CPU profile", "error", err)
			os.Exit(1)
		}
		fmt.Printf("pprof: profiling started\n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCmd().ExecuteContext(ctx)

	stop()

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Printf("pprof: profiling finished\n")
	}

	if err != nil {
		clog.L.Error("tinykern failed", "error", err)
		os.Exit(1)
	}
}
