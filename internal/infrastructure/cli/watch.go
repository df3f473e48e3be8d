package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sovereignlab/sovereign/internal/infrastructure/watch"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline continuously on a schedule and on backlog changes",
	Long: `Keeps the controller running: a pipeline run fires on every interval
tick and whenever the backlog store changes (a task was confirmed). Runs
never overlap; an empty backlog is an idle tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		if services.Pipeline == nil {
			return NewCLIError(
				"generation provider unavailable",
				"Set the provider API key environment variable named in .sovereign/config.yaml",
				nil,
			)
		}

		ctx := cmd.Context()
		// The artifact lock already guards correctness; the mutex just keeps
		// a tick from racing a debounced backlog trigger into a noisy
		// lock-held failure.
		var runMu sync.Mutex
		trigger, err := watch.NewRunTrigger(services.Workspace.Repo.BaseDir(), watchInterval, func(t watch.Trigger) {
			runMu.Lock()
			defer runMu.Unlock()
			result, err := services.Pipeline.Run(ctx, "")
			if err != nil {
				fmt.Printf("[%s] run failed (%s): %v\n", time.Now().Format("15:04:05"), t.Source, err)
				return
			}
			if result == nil {
				return // idle tick
			}
			if result.Status == release.StatusSuccess {
				fmt.Printf("[%s] run %s succeeded: commit %s\n", time.Now().Format("15:04:05"), result.RunID, result.CommitID)
			} else {
				fmt.Printf("[%s] run %s failed: %s\n", time.Now().Format("15:04:05"), result.RunID, result.Note)
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("Watching for confirmed tasks (interval: %s). Ctrl-C to stop.\n", watchInterval)
		if err := trigger.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "scheduled trigger interval (0 disables the tick)")
	RootCmd.AddCommand(watchCmd)
}
