package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/quill/pkg/domain"
)

// Config describes an external command exposed as a tool, as listed under
// "commands" in quill.yaml.
type Config struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`

	// Parameters is the JSON Schema of the tool arguments.
	Parameters map[string]any `yaml:"parameters" json:"parameters,omitempty"`

	// Stage names the stage that may call the command. Empty means "research".
	Stage string `yaml:"stage" json:"stage,omitempty"`

	// Timeout bounds a single execution (0 = only the run context applies).
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// Validate reports missing fields.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(c.Command) == "" {
		errs = append(errs, fmt.Errorf("command %q: command is required", c.Name))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("command %q: timeout must not be negative", c.Name))
	}
	return errors.Join(errs...)
}

// Definition is the tool definition offered to the model.
func (c Config) Definition() domain.Tool {
	desc := c.Description
	if desc == "" {
		desc = fmt.Sprintf("Runs %s.", c.Command)
	}
	return domain.Tool{Name: c.Name, Description: desc, Parameters: c.Parameters}
}
