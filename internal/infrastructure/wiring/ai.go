package wiring

import (
	"fmt"

	"github.com/sovereignlab/sovereign/internal/infrastructure/config"
	"github.com/sovereignlab/sovereign/pkg/domain/synth"
	infrasynth "github.com/sovereignlab/sovereign/pkg/synth"
)

// LoadProvider builds the configured generation provider wrapped with the
// bounded completion timeout. The API key comes from the environment.
func LoadProvider(cfg *config.Config) (synth.Provider, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	var base synth.Provider
	switch cfg.Provider.Name {
	case "gemini", "":
		base = infrasynth.NewGeminiProvider(cfg.Provider.Model, key)
	case "openai":
		base = infrasynth.NewOpenAIProvider(cfg.Provider.Model, key)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}

	return infrasynth.NewResilientProvider(base, cfg.SynthesisTimeout()), nil
}
