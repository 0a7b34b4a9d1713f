// Command pipexec builds a topology from a YAML description, feeds it
// numbered envelopes and reports what came out.
//
//	pipexec run --config topology.yaml --envelopes 1000 --metrics-addr :9090
//
// Process settings come from PIPEXEC_* environment variables; see
// internal/config.Env.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/pipexec/internal/config"
	"github.com/vnykmshr/pipexec/internal/logging"
)

var version = "dev"

type app struct {
	env    *config.Env
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string
	var dev bool

	root := &cobra.Command{
		Use:           "pipexec",
		Short:         "Run elastic concurrent pipelines described in YAML",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				env.Log.Level = logLevel
			}
			if dev {
				env.Log.Development = true
			}
			logger, err := logging.New(env.Log)
			if err != nil {
				return err
			}
			a.env, a.logger = env, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&dev, "dev", false, "human-readable development logging")

	root.AddCommand(newRunCmd(a), newValidateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pipexec version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pipexec %s\n", version)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [topology.yaml]",
		Short: "Check a topology file and build it without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := config.LoadTopology(args[0])
			if err != nil {
				return err
			}
			h, err := build(topo, zap.NewNop(), 0, nil)
			if err != nil {
				return err
			}
			<-h.Shutdown()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s topology with %d nodes is valid\n",
				args[0], topo.Shape, len(h.Nodes()))
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pipexec:", err)
		os.Exit(1)
	}
}
