package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action is an allow-listed command bound to a plan action name.
type Action struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Environment map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
}

// actionsFile is the layout of a standalone actions.yaml.
type actionsFile struct {
	Actions map[string]Action `yaml:"actions" json:"actions"`
}

// LoadActions reads an actions file (YAML or JSON). A missing file yields an
// empty allow-list.
func LoadActions(path string) (map[string]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Action{}, nil
		}
		return nil, fmt.Errorf("failed to read actions config: %w", err)
	}

	var file actionsFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse actions config %s: %w", path, err)
	}

	actions := make(map[string]Action, len(file.Actions))
	for name, a := range file.Actions {
		if a.Command == "" {
			return nil, fmt.Errorf("action %q has no command", name)
		}
		actions[strings.ToLower(name)] = a
	}
	return actions, nil
}
