package domain

// Tool defines metadata about a tool available to a stage.
// Parameters is a JSON Schema object describing the accepted arguments;
// it is used both for validation and for advertising the tool to a model.
type Tool struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}
