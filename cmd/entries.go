package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-habits/internal/domain"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Prints stored daily entries as JSON",
	Long: `Prints the stored entries of a date range (default: the last 30 days)
or of a whole calendar year when --year is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		year, _ := cmd.Flags().GetInt("year")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		if year != 0 && (start != "" || end != "") {
			return errors.New("--year cannot be combined with --start or --end")
		}

		dr := domain.TrailingRange(time.Now(), 30)
		if year != 0 {
			dr = domain.YearRange(year)
		}
		if start != "" {
			dr.StartDate = start
		}
		if end != "" {
			dr.EndDate = end
		}
		if err := dr.Validate(); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		if year != 0 {
			entries, err := store.GetEntriesByYear(ctx, year)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"year": year, "entries": entries})
		}
		entries, err := store.GetEntriesInRange(ctx, dr.StartDate, dr.EndDate)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"entries": entries, "date_range": dr})
	},
}

func init() {
	rootCmd.AddCommand(entriesCmd)
	entriesCmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	entriesCmd.Flags().String("end", "", "End date (YYYY-MM-DD)")
	entriesCmd.Flags().Int("year", 0, "Calendar year to list")
}
