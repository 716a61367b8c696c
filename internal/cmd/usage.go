package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notelens/notelens/internal/config"
	apperrors "github.com/notelens/notelens/internal/errors"
	"github.com/notelens/notelens/internal/license"
	"github.com/notelens/notelens/internal/output"
)

var usageOutputFormat string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show daily fetch counters and the remaining free-tier allowance",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(usageOutputFormat)
		if err != nil {
			return err
		}
		formatter := output.NewFormatter(format)

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		history, err := st.UsageHistory(cmd.Context())
		if err != nil {
			return apperrors.WrapStorage(cmd.Context(), err, "failed to read usage history")
		}

		rendered, err := formatter.FormatUsage(history)
		if err != nil {
			return err
		}
		fmt.Println(rendered)

		if format == output.FormatTable {
			cfg := config.GetConfig()
			freeDailyFetches := 0
			if cfg != nil {
				freeDailyFetches = cfg.Limits.FreeDailyFetches
			}

			gate := license.NewGate(st, freeDailyFetches)
			remaining, err := gate.Remaining(cmd.Context())
			if err != nil {
				return err
			}
			if remaining < 0 {
				fmt.Println("Remaining today: unlimited (pro license active)")
			} else {
				fmt.Printf("Remaining today: %d of %d free fetches\n", remaining, gate.FreeDailyFetches)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVarP(&usageOutputFormat, "output", "o", "table", "output format (table, json)")
}
