package config_test

import (
	"testing"

	"github.com/sovereignlab/sovereign/internal/infrastructure/config"
	"github.com/sovereignlab/sovereign/pkg/gate"
	"github.com/sovereignlab/sovereign/pkg/storage"
)

func TestDefaultIsComplete(t *testing.T) {
	cfg := config.Default()

	if cfg.Branch != "main" {
		t.Errorf("branch = %q", cfg.Branch)
	}
	if cfg.Provider.Name != "gemini" || cfg.Provider.APIKeyEnv != "SOVEREIGN_API_KEY" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Gate.Size != gate.DefaultSizeBand {
		t.Errorf("size band = %+v", cfg.Gate.Size)
	}
	if cfg.SynthesisTimeout() <= 0 || cfg.SmokeTimeout() <= 0 || cfg.LockStaleAfter() <= 0 {
		t.Error("all timeouts must have positive defaults")
	}
}

func TestRulesForPerArtifactOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Gate = gate.Rules{
		RequiredSignatures: []string{"def main():"},
		Size:               gate.SizeBand{MinRatio: 0.5, MaxRatio: 3.0},
	}
	cfg.Artifacts = map[string]gate.Rules{
		"app/digest.py": {RequiredSignatures: []string{"def send_digest(recipients):"}},
	}

	got := cfg.RulesFor("app/digest.py")
	if len(got.RequiredSignatures) != 1 || got.RequiredSignatures[0] != "def send_digest(recipients):" {
		t.Errorf("override not applied: %+v", got)
	}
	// The override left its size band zero; the built-in default takes over
	// so the size check never silently disables.
	if got.Size != gate.DefaultSizeBand {
		t.Errorf("size band = %+v", got.Size)
	}

	plain := cfg.RulesFor("app/main.py")
	if len(plain.RequiredSignatures) != 1 || plain.RequiredSignatures[0] != "def main():" {
		t.Errorf("default rules not returned: %+v", plain)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := storage.NewFilesystemRepository(root).Initialize(); err != nil {
		t.Fatalf("initialize workspace: %v", err)
	}

	cfg := config.Default()
	cfg.Branch = "release"
	cfg.Smoke.Command = []string{"./scripts/smoke.sh"}
	cfg.Artifacts = map[string]gate.Rules{
		"app/main.py": {RequiredSignatures: []string{"def main():"}},
	}
	if err := config.Save(root, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Branch != "release" {
		t.Errorf("branch = %q", loaded.Branch)
	}
	if len(loaded.Smoke.Command) != 1 || loaded.Smoke.Command[0] != "./scripts/smoke.sh" {
		t.Errorf("smoke command = %v", loaded.Smoke.Command)
	}
	if rules := loaded.RulesFor("app/main.py"); len(rules.RequiredSignatures) != 1 {
		t.Errorf("artifact rules lost on the round trip: %+v", rules)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	root := t.TempDir()
	if err := storage.NewFilesystemRepository(root).Initialize(); err != nil {
		t.Fatalf("initialize workspace: %v", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Branch != "main" {
		t.Errorf("expected defaults, got branch %q", cfg.Branch)
	}
}

func TestLoadRejectsEmptyBranch(t *testing.T) {
	root := t.TempDir()
	if err := storage.NewFilesystemRepository(root).Initialize(); err != nil {
		t.Fatalf("initialize workspace: %v", err)
	}

	cfg := config.Default()
	cfg.Branch = ""
	if err := config.Save(root, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := config.Load(root); err == nil {
		t.Error("a config without an integration branch must be rejected")
	}
}
