package cmd

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints habit statistics as JSON",
	Long:  `Computes totals, the daily average and the current and longest streaks over every stored entry, and prints them in JSON format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		stats, err := store.GetStats(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
