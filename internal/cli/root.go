package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sairun/internal/job"
	"sairun/internal/logging"
	"sairun/internal/sched"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagCSV       string

	cfg    sched.Config
	runID  string
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the sairun CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sairun",
		Short: "sairun — sans-IO task runtime",
		Long:  "sairun drives protocol tasks on a sans-IO runtime, either in virtual time or over real UDP sockets.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := sched.Load(flagConfig)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				c.LogLevel = flagLogLevel
			}
			if flags.Changed("log-format") {
				c.LogFormat = flagLogFormat
			}
			if flags.Changed("csv") {
				c.CSVPath = flagCSV
			}
			if flagDebug {
				c.LogLevel = "debug"
			}
			cfg = c

			runID = uuid.NewString()
			logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat).
				With(slog.String("run", runID))
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "YAML config file (missing file = defaults)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagCSV, "csv", "", "Write runtime events as CSV to this file ({run} expands to the run id)")

	root.AddCommand(
		newSimCmd(),
		newEchoCmd(),
		newPingCmd(),
	)

	return root
}

// newRuntime builds the runtime for a command from the loaded config.
func newRuntime() (*sched.Runtime, error) {
	rt := sched.New(cfg, logger)
	if cfg.CSVPath != "" {
		path := strings.ReplaceAll(cfg.CSVPath, "{run}", runID)
		if err := rt.EnableCSVLogging(path); err != nil {
			return nil, err
		}
		logger.Info("event log enabled", slog.String("path", path))
	}
	return rt, nil
}

func tickInterval() time.Duration {
	return time.Duration(cfg.TickMS) * time.Millisecond
}

// printReply prints one ping reply the way ping(8) does.
func printReply(cmd *cobra.Command, from string) func(job.Reply) {
	return func(r job.Reply) {
		fmt.Fprintf(cmd.OutOrStdout(), "%d bytes from %s: seq=%d payload=%q time=%s\n",
			len(r.Payload), from, r.Seq, r.Payload, r.RTT)
	}
}
