package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sovereignlab/sovereign/internal/infrastructure/config"
	"github.com/sovereignlab/sovereign/pkg/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sovereign workspace in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getWorkspaceRoot()
		if err != nil {
			return err
		}

		repo := storage.NewFilesystemRepository(root)
		if repo.IsInitialized() {
			return fmt.Errorf("workspace already initialized at %s", repo.BaseDir())
		}
		if err := repo.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize workspace: %w", err)
		}

		if err := config.Save(root, config.Default()); err != nil {
			return err
		}
		if err := repo.SaveRollbackManifest(&storage.RollbackManifest{
			Artifacts: []string{"CHANGE_ME"},
		}); err != nil {
			return err
		}

		store, err := storage.OpenSQLite(repo.LedgerDBPath())
		if err != nil {
			return fmt.Errorf("failed to create backlog store: %w", err)
		}
		defer store.Close()

		fmt.Printf("Initialized sovereign workspace at %s\n", repo.BaseDir())
		fmt.Println("Edit .sovereign/config.yaml and .sovereign/rollback.yaml before the first run.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}
