package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
)

// Styles
var statusDone = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
var statusWIP = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
var statusErr = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
var statusDim = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Manage the approved change queue",
}

var (
	addTitle       string
	addRequirement string
	addArtifact    string
	addPriority    int
)

var backlogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a pending task to the backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addTitle == "" || addRequirement == "" || addArtifact == "" {
			return NewCLIError(
				"a task needs --title, --requirement and --artifact",
				"Example: sovereign backlog add --title 'Faster digest' --requirement '...' --artifact app/digest.py",
				nil,
			)
		}

		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		task := &backlog.Task{
			ID:           uuid.New().String(),
			Title:        addTitle,
			Requirement:  addRequirement,
			ArtifactPath: addArtifact,
			Status:       backlog.StatusPending,
			Priority:     addPriority,
		}
		if err := services.Store.Create(cmd.Context(), task); err != nil {
			return MapError(err)
		}

		fmt.Printf("Added task %s (pending). Confirm it with 'sovereign backlog confirm %s'\n", task.ID, task.ID)
		return nil
	},
}

var backlogConfirmCmd = &cobra.Command{
	Use:   "confirm <task-id>",
	Short: "Approve a pending task for selection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		task, err := services.Store.Get(cmd.Context(), args[0])
		if err != nil {
			return MapError(err)
		}

		fsm, err := backlog.NewTaskStateMachine(string(task.Status), task.ID, nil)
		if err != nil {
			return err
		}
		if err := fsm.Transition("confirm"); err != nil {
			return MapError(err)
		}
		if err := services.Store.UpdateStatus(cmd.Context(), task.ID, fsm.CurrentStatus()); err != nil {
			return MapError(err)
		}

		fmt.Printf("Task %s confirmed.\n", task.ID)
		return nil
	},
}

var listStatus string

var backlogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlog tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		statuses := backlog.AllTaskStatuses()
		if listStatus != "" {
			s := backlog.TaskStatus(listStatus)
			if !s.IsValid() {
				return NewCLIError(
					fmt.Sprintf("unknown status %q", listStatus),
					"Valid statuses: pending, confirmed, developing, completed, failed",
					nil,
				)
			}
			statuses = []backlog.TaskStatus{s}
		}

		total := 0
		for _, status := range statuses {
			tasks, err := services.Store.ListByStatus(cmd.Context(), status)
			if err != nil {
				return MapError(err)
			}
			for _, t := range tasks {
				fmt.Printf("%s  p%-3d %-36s  %s (%s)\n",
					renderStatus(t.Status), t.Priority, t.ID, t.Title, t.ArtifactPath)
				total++
			}
		}

		if total == 0 {
			fmt.Println("Backlog is empty.")
		}
		return nil
	},
}

func renderStatus(s backlog.TaskStatus) string {
	label := fmt.Sprintf("%-10s", s)
	switch s {
	case backlog.StatusCompleted:
		return statusDone.Render(label)
	case backlog.StatusDeveloping:
		return statusWIP.Render(label)
	case backlog.StatusFailed:
		return statusErr.Render(label)
	case backlog.StatusPending:
		return statusDim.Render(label)
	default:
		return label
	}
}

func init() {
	backlogAddCmd.Flags().StringVar(&addTitle, "title", "", "short task title")
	backlogAddCmd.Flags().StringVar(&addRequirement, "requirement", "", "requirement text handed to the synthesizer")
	backlogAddCmd.Flags().StringVar(&addArtifact, "artifact", "", "target artifact path, relative to the workspace root")
	backlogAddCmd.Flags().IntVar(&addPriority, "priority", 100, "selection priority (lower runs first)")

	backlogListCmd.Flags().StringVar(&listStatus, "status", "", "only show tasks with this status")

	backlogCmd.AddCommand(backlogAddCmd)
	backlogCmd.AddCommand(backlogConfirmCmd)
	backlogCmd.AddCommand(backlogListCmd)
	RootCmd.AddCommand(backlogCmd)
}
