package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sovereignlab/sovereign/pkg/domain/release"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and verify the release ledger",
}

var ledgerLimit int

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		entries, err := services.Ledger.ListRuns(cmd.Context(), ledgerLimit)
		if err != nil {
			return MapError(err)
		}
		if len(entries) == 0 {
			fmt.Println("Ledger is empty.")
			return nil
		}

		for _, e := range entries {
			commit := e.CommitID
			if commit == "" {
				commit = "-"
			}
			fmt.Printf("%s  %-11s %-8s %s  commit=%s",
				e.StartedAt.Format("2006-01-02 15:04:05"),
				renderRunStatus(e.Status), e.ReleaseType, e.RunID, commit)
			if e.BacklogID != "" {
				fmt.Printf("  task=%s", e.BacklogID)
			}
			if e.Note != "" {
				fmt.Printf("\n    %s", e.Note)
			}
			fmt.Println()
		}
		return nil
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the fallback event chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		fmt.Println("Verifying event chain integrity...")
		violations, err := services.Ledger.VerifyIntegrity()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		if len(violations) == 0 {
			fmt.Println("Event chain is intact and verified.")
			return nil
		}

		fmt.Printf("Found %d integrity violations:\n", len(violations))
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		os.Exit(1)
		return nil
	},
}

func renderRunStatus(s release.RunStatus) string {
	label := fmt.Sprintf("%-11s", s)
	switch s {
	case release.StatusSuccess:
		return statusDone.Render(label)
	case release.StatusRolledBack:
		return statusWIP.Render(label)
	case release.StatusFailure:
		return statusErr.Render(label)
	case release.StatusStarted:
		return statusDim.Render(label)
	default:
		return label
	}
}

func init() {
	ledgerListCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "maximum number of runs to show")
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	RootCmd.AddCommand(ledgerCmd)
}
