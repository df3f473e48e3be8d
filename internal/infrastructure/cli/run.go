package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sovereignlab/sovereign/internal/infrastructure/wiring"
	"github.com/sovereignlab/sovereign/pkg/application"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
)

var (
	runTaskID     string
	runRollbackTo string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run (forward release or rollback)",
	Long: `Executes one pipeline run to completion.

Without flags the highest-priority confirmed task is selected. --task
dispatches exactly that task and nothing else. --rollback-to restores the
manifest artifact set at the given revision instead; rollback and forward
deployment are mutually exclusive per invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runTaskID != "" && runRollbackTo != "" {
			return NewCLIError(
				"--task and --rollback-to are mutually exclusive",
				"A rollback run bypasses the backlog entirely; drop one of the flags",
				nil,
			)
		}

		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		if runRollbackTo != "" {
			result, err := services.Rollback.Rollback(cmd.Context(), runRollbackTo)
			return reportRun(services, result, err)
		}

		if services.Pipeline == nil {
			return NewCLIError(
				"generation provider unavailable",
				"Set the provider API key environment variable named in .sovereign/config.yaml",
				nil,
			)
		}

		result, err := services.Pipeline.Run(cmd.Context(), runTaskID)
		if result == nil && err == nil {
			fmt.Println("Backlog empty; nothing to do.")
			return nil
		}
		return reportRun(services, result, err)
	},
}

func reportRun(services *wiring.AppServices, result *application.RunResult, err error) error {
	if result != nil {
		switch result.Status {
		case release.StatusSuccess:
			fmt.Printf("Run %s succeeded: commit %s\n", result.RunID, result.CommitID)
		case release.StatusRolledBack:
			fmt.Printf("Run %s rolled back: commit %s (%s)\n", result.RunID, result.CommitID, result.Note)
		default:
			fmt.Printf("Run %s failed: %s\n", result.RunID, result.Note)
		}
	}
	return MapError(err)
}

func init() {
	runCmd.Flags().StringVar(&runTaskID, "task", "", "dispatch exactly this task id")
	runCmd.Flags().StringVar(&runRollbackTo, "rollback-to", "", "restore the manifest artifact set at this revision")
	RootCmd.AddCommand(runCmd)
}
