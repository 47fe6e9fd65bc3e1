package cycle

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crucible-dev/crucible/pkg/models"
)

// ValidatorSpec describes one validator agent.
type ValidatorSpec struct {
	// Kind is the validator's domain (syntax, logic, security, integration).
	Kind string `yaml:"kind"`
	// AgentID identifies the agent persona invoked for this validator.
	AgentID string `yaml:"agent_id"`
	// ModelClass is the capability tier the validator runs on.
	ModelClass models.ModelClass `yaml:"model_class"`
	// Timeout bounds the validator's invocation. Zero uses the configured
	// validator timeout.
	Timeout time.Duration `yaml:"timeout"`
	// SystemPrompt frames the validator's role.
	SystemPrompt string `yaml:"system_prompt"`
}

// UnmarshalYAML decodes a validator spec, parsing timeout strings like
// "2m" into a duration.
func (v *ValidatorSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Kind         string            `yaml:"kind"`
		AgentID      string            `yaml:"agent_id"`
		ModelClass   models.ModelClass `yaml:"model_class"`
		Timeout      string            `yaml:"timeout"`
		SystemPrompt string            `yaml:"system_prompt"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	v.Kind = raw.Kind
	v.AgentID = raw.AgentID
	v.ModelClass = raw.ModelClass
	v.SystemPrompt = raw.SystemPrompt
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		v.Timeout = d
	}
	return nil
}

// Registry holds the validator set a cycle fans out to.
type Registry struct {
	Validators []ValidatorSpec `yaml:"validators"`
}

// DefaultRegistry returns the built-in validator set. Security runs on the
// high class because missed findings there are the most expensive.
func DefaultRegistry() *Registry {
	return &Registry{
		Validators: []ValidatorSpec{
			{
				Kind:       "syntax",
				AgentID:    "validator-syntax",
				ModelClass: models.ModelClassLow,
				SystemPrompt: "You are a syntax validator. Check the submitted work for syntax errors, " +
					"type errors, and build problems. Respond with a JSON verdict.",
			},
			{
				Kind:       "logic",
				AgentID:    "validator-logic",
				ModelClass: models.ModelClassMedium,
				SystemPrompt: "You are a logic validator. Check the submitted work for incorrect behavior, " +
					"unhandled edge cases, and missing error handling. Respond with a JSON verdict.",
			},
			{
				Kind:       "security",
				AgentID:    "validator-security",
				ModelClass: models.ModelClassHigh,
				SystemPrompt: "You are a security validator. Check the submitted work for vulnerabilities, " +
					"injection risks, and exposed secrets. Respond with a JSON verdict.",
			},
			{
				Kind:       "integration",
				AgentID:    "validator-integration",
				ModelClass: models.ModelClassMedium,
				SystemPrompt: "You are an integration validator. Check that the submitted work fits the " +
					"surrounding system: contracts, dependencies, and configuration. Respond with a JSON verdict.",
			},
		},
	}
}

// LoadRegistry reads a validator registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	registry := &Registry{}
	if err := yaml.Unmarshal(content, registry); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}

	if len(registry.Validators) == 0 {
		return nil, fmt.Errorf("registry %s defines no validators", path)
	}
	for i, v := range registry.Validators {
		if v.Kind == "" {
			return nil, fmt.Errorf("registry %s: validator %d has no kind", path, i)
		}
		if v.AgentID == "" {
			registry.Validators[i].AgentID = "validator-" + v.Kind
		}
		if v.ModelClass == "" {
			registry.Validators[i].ModelClass = models.ModelClassMedium
		} else if !v.ModelClass.Valid() {
			return nil, fmt.Errorf("registry %s: validator %s has unknown model class %q", path, v.Kind, v.ModelClass)
		}
	}

	return registry, nil
}
