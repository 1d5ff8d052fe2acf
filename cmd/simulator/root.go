package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Cioraz/Iot-Project/internal/logging"
	"github.com/Cioraz/Iot-Project/internal/scenario"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// app carries the writers and persistent flags shared by every subcommand.
type app struct {
	out       io.Writer
	errOut    io.Writer
	logLevel  string
	logFormat string
}

func (a *app) logger() logging.Logger {
	cfg := logging.ConfigFromEnv(a.logLevel, a.logFormat)
	cfg.Writer = a.errOut
	return logging.New(cfg)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "simulator",
		Short: "Discrete-event testbed for RPL DIO replay attacks",
		Long: `simulator schedules legitimate and replayed DIO deliveries on a virtual
clock and reports, per receiver, which ones the anti-replay filter accepted
or dropped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json (default $LOG_FORMAT or text)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newScenariosCmd(a))
	root.AddCommand(newHistoryCmd(a))
	return root
}

var presetDescriptions = map[string]string{
	scenario.PresetBaseline: "normal traffic, no attacker; node 1 mitigates, node 2 does not",
	scenario.PresetReplay:   "attacker node 0 replays DIO seq=1 to nodes 1 and 2",
}

func newScenariosCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, name := range scenario.PresetNames() {
				cfg, err := scenario.Preset(name, false)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\tstop=%ss\t%s\n", name, timectrl.FormatSeconds(cfg.StopTime), presetDescriptions[name])
			}
			return tw.Flush()
		},
	}
}
