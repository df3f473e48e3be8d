package wiring

import (
	"fmt"
	"log/slog"

	"github.com/sovereignlab/sovereign/internal/infrastructure/config"
	"github.com/sovereignlab/sovereign/pkg/application"
	"github.com/sovereignlab/sovereign/pkg/domain/synth"
	"github.com/sovereignlab/sovereign/pkg/lock"
	"github.com/sovereignlab/sovereign/pkg/logging"
	"github.com/sovereignlab/sovereign/pkg/smoke"
	"github.com/sovereignlab/sovereign/pkg/storage"
	"github.com/sovereignlab/sovereign/pkg/vcs"
)

// AppServices exposes the application layer services wired together with a
// workspace. Construction happens once per invocation; nothing is shared
// across runs except the stores themselves.
type AppServices struct {
	Workspace *Workspace
	Config    *config.Config
	Logger    *slog.Logger
	Store     *storage.SQLiteStore
	Selector  *application.SelectorService
	Ledger    *application.LedgerService
	Pipeline  *application.PipelineService // nil when the provider could not be built
	Rollback  *application.RollbackService
	Provider  synth.Provider
}

// Close releases the primary store connection.
func (s *AppServices) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

// BuildAppServices constructs the full service graph for a repo root. A
// provider configuration problem (typically a missing API key) is returned
// as a non-nil error alongside usable services: read-only commands and
// rollback still work without a generation provider.
func BuildAppServices(root string) (*AppServices, error) {
	workspace := NewWorkspace(root)
	if !workspace.Repo.IsInitialized() {
		return nil, fmt.Errorf("workspace not initialized at %s", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:   logging.Level(cfg.Log.Level),
		Service: "sovereign",
		JSON:    cfg.Log.JSON,
	})

	store, err := storage.OpenSQLite(workspace.Repo.LedgerDBPath())
	if err != nil {
		return nil, err
	}

	selector := application.NewSelectorService(store)
	snapshots := application.NewSnapshotService(workspace.Repo, root)
	ledger := application.NewLedgerService(store, workspace.Repo, logger)
	git := vcs.NewGitClient(root, cfg.Identity)
	locks := lock.NewManager(workspace.Repo.LockDir()).WithStaleAfter(cfg.LockStaleAfter())

	var smokeGate smoke.Gate
	if len(cfg.Smoke.Command) > 0 {
		smokeGate = smoke.NewCommandGate(cfg.Smoke.Command, root, cfg.SmokeTimeout())
	}

	services := &AppServices{
		Workspace: workspace,
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Selector:  selector,
		Ledger:    ledger,
		Rollback: application.NewRollbackService(
			workspace.Repo, snapshots, ledger, git, smokeGate, locks, cfg.Branch, logger),
	}

	provider, provErr := LoadProvider(cfg)
	if provErr != nil {
		return services, fmt.Errorf("generation provider unavailable: %w", provErr)
	}
	services.Provider = provider

	synthesis := application.NewSynthesisService(provider, cfg.Synthesis.Temperature, cfg.Synthesis.MaxTokens)
	services.Pipeline = application.NewPipelineService(
		selector, snapshots, synthesis, ledger, git, smokeGate, locks,
		cfg.RulesFor, cfg.Branch, logger)

	return services, nil
}
