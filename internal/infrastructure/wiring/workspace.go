package wiring

import (
	"github.com/sovereignlab/sovereign/pkg/storage"
)

// Workspace bundles core infrastructure dependencies.
type Workspace struct {
	Root string
	Repo *storage.FilesystemRepository
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{
		Root: root,
		Repo: storage.NewFilesystemRepository(root),
	}
}
