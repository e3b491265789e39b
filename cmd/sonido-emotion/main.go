package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// app carries state shared by every subcommand once the root has run
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "sonido-emotion",
		Short:         "Speech emotion recognition: MFCC extraction, CNN training and an HTTP classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newExtractCommand(a),
		newTrainCommand(a),
		newServeCommand(a),
	)
	return root
}

// setup loads configuration and configures the global logger
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	if cfg.Logging.Colors {
		logging.SetGlobalLogger(logging.NewDefaultLogger())
	} else {
		logging.SetGlobalLogger(logging.NewDefaultLoggerNoColor())
	}
	logging.SetLevel(level)

	a.cfg = cfg
	return nil
}
