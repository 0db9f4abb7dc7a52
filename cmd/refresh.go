package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-habits/internal/domain"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Synchronizes daily pull request counts from GitHub",
	Long: `Searches the pull requests the configured user created in the range
(default: the trailing year), writes one entry per day and prints the result as JSON.
GITHUB_USERNAME must be set; GITHUB_TOKEN is strongly recommended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		var dr *domain.DateRange
		if start != "" || end != "" {
			if start == "" || end == "" {
				return errors.New("--start and --end must be given together")
			}
			dr = &domain.DateRange{StartDate: start, EndDate: end}
			if err := dr.Validate(); err != nil {
				return err
			}
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
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

		sync, err := newSynchronizer(cfg, store, logger)
		if err != nil {
			return err
		}
		result, err := sync.Refresh(ctx, dr)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	refreshCmd.Flags().String("end", "", "End date (YYYY-MM-DD)")
}
