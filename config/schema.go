package config

import (
	"encoding/json"

	"github.com/grovetools/mwstate/schema"
	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for the core mwstate configuration.
// Extension sections are not part of the core schema and are stripped before
// validation.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	// BaseConfig mirrors Config without the Extensions remainder.
	type BaseConfig struct {
		Version    string           `yaml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
		Middleware MiddlewareConfig `yaml:"middleware,omitempty" jsonschema:"description=Connection to the remote management service"`
		Daemon     DaemonConfig     `yaml:"daemon,omitempty" jsonschema:"description=Local state daemon settings"`
		Watch      WatchConfig      `yaml:"watch,omitempty" jsonschema:"description=Build watcher rules"`
	}

	s := r.Reflect(&BaseConfig{})
	s.Title = "mwstate Configuration"
	s.Description = "Schema for mwstate.yml properties."
	s.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(s, "", "  ")
}

// SchemaValidator validates configuration against the generated schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator compiles the generated schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	v, err := schema.NewValidator("mwstate.json", data)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{validator: v}, nil
}

// Validate validates a configuration, or a raw document decoded from YAML/TOML.
func (v *SchemaValidator) Validate(configData interface{}) error {
	if raw, ok := configData.(map[string]interface{}); ok {
		core := make(map[string]interface{}, len(raw))
		for key, value := range raw {
			if isCoreKey(key) {
				core[key] = value
			}
		}
		configData = core
	}
	return v.validator.Validate(configData)
}
