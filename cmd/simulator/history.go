package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cioraz/Iot-Project/internal/report"
	"github.com/Cioraz/Iot-Project/internal/store"
	"github.com/Cioraz/Iot-Project/timectrl"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		dbPath string
		format string
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or print the outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			if err := report.CheckFormat(format); err != nil {
				return err
			}
			db, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				outcomes, err := db.Outcomes(ctx, args[0])
				if err != nil {
					return err
				}
				return report.Write(a.out, format, outcomes)
			}

			runs, err := db.Runs(ctx)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(a.out)
				for _, r := range runs {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tMITIGATION\tACCEPTED\tDROPPED\tTX\tFINAL\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%ss\t%s\n",
					r.ID, r.Scenario, onOff(r.Mitigation), r.Accepted, r.Dropped,
					r.Transmissions, timectrl.FormatSeconds(r.FinalTime), r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file written by `simulator run --db`")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or ns3")
	return cmd
}
