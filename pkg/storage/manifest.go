package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// RollbackManifest names the fixed artifact set restored together as one
// atomic unit. Rollback never restores a partial set.
type RollbackManifest struct {
	Artifacts []string `yaml:"artifacts" json:"artifacts"`
}

const manifestSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["artifacts"],
  "properties": {
    "artifacts": {
      "type": "array",
      "minItems": 1,
      "items": { "type": "string", "minLength": 1 }
    }
  }
}`

var manifestSchemaLoader = gojsonschema.NewStringLoader(manifestSchemaJSON)

// LoadRollbackManifest reads and validates the rollback manifest. An invalid
// manifest blocks rollback entirely: restoring a wrong or partial artifact
// set is worse than not rolling back.
func (r *FilesystemRepository) LoadRollbackManifest() (*RollbackManifest, error) {
	path, err := r.ResolvePath(ManifestFile)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rollback manifest: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal rollback manifest: %w", err)
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode rollback manifest: %w", err)
	}

	result, err := gojsonschema.Validate(manifestSchemaLoader, gojsonschema.NewBytesLoader(rawJSON))
	if err != nil {
		return nil, fmt.Errorf("validate rollback manifest: %w", err)
	}
	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			if detail != "" {
				detail += "; "
			}
			detail += desc.String()
		}
		return nil, fmt.Errorf("rollback manifest is invalid: %s", detail)
	}

	var manifest RollbackManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal rollback manifest: %w", err)
	}

	return &manifest, nil
}

// SaveRollbackManifest writes the manifest, used by workspace init to seed
// a template.
func (r *FilesystemRepository) SaveRollbackManifest(m *RollbackManifest) error {
	path, err := r.ResolvePath(ManifestFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal rollback manifest: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
