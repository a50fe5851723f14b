package interview

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Bank is an immutable registry of interview archetypes keyed by type id.
type Bank struct {
	defs map[string]Definition
}

// NewBank validates every definition and builds a registry. Later definitions with the
// same type replace earlier ones.
func NewBank(defs ...Definition) (*Bank, error) {
	b := &Bank{defs: make(map[string]Definition, len(defs))}
	for i := range defs {
		if err := ValidateDefinition(&defs[i]); err != nil {
			return nil, err
		}
		b.defs[defs[i].Type] = cloneDefinition(&defs[i])
	}
	return b, nil
}

// Get resolves an archetype.
func (b *Bank) Get(interviewType string) (Definition, error) {
	def, ok := b.defs[interviewType]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrInvalidInterviewType, interviewType)
	}
	return cloneDefinition(&def), nil
}

// All returns the known type ids, sorted.
func (b *Bank) All() []string {
	ids := make([]string, 0, len(b.defs))
	for id := range b.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsValid reports whether interviewType resolves.
func (b *Bank) IsValid(interviewType string) bool {
	_, ok := b.defs[interviewType]
	return ok
}

// ValidateDefinition enforces the archetype invariants.
func ValidateDefinition(d *Definition) error {
	if d.Type == "" {
		return fmt.Errorf("definition type is required")
	}
	if d.MaxSteps < 1 {
		return fmt.Errorf("definition %s: max_steps must be >= 1, got %d", d.Type, d.MaxSteps)
	}
	if len(d.Questions) != d.MaxSteps {
		return fmt.Errorf("definition %s: has %d questions but max_steps is %d", d.Type, len(d.Questions), d.MaxSteps)
	}

	seen := make(map[string]bool, len(d.Questions))
	for i := range d.Questions {
		q := &d.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("definition %s: question %d has no id", d.Type, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("definition %s: duplicate question id %q", d.Type, q.ID)
		}
		seen[q.ID] = true

		if !q.Type.IsValid() {
			return fmt.Errorf("definition %s: question %s has unknown type %q", d.Type, q.ID, q.Type)
		}
		if q.Type.RequiresOptions() && len(q.Options) == 0 {
			return fmt.Errorf("definition %s: question %s of type %s needs options", d.Type, q.ID, q.Type)
		}
		if !q.Type.RequiresOptions() && len(q.Options) > 0 {
			return fmt.Errorf("definition %s: question %s of type %s must not declare options", d.Type, q.ID, q.Type)
		}
	}

	for _, c := range d.CompletionCriteria {
		if !c.IsValid() {
			return fmt.Errorf("definition %s: unknown completion criterion %q", d.Type, c)
		}
	}
	if !d.HasCriterion(CriterionAllRequiredAnswered) || !d.HasCriterion(CriterionStepLimitReached) {
		return fmt.Errorf("definition %s: completion criteria must include %s and %s",
			d.Type, CriterionAllRequiredAnswered, CriterionStepLimitReached)
	}
	return nil
}

func cloneDefinition(d *Definition) Definition {
	out := *d
	out.Questions = make([]Question, len(d.Questions))
	for i := range d.Questions {
		q := d.Questions[i]
		if q.Options != nil {
			q.Options = append([]string(nil), q.Options...)
		}
		if q.Metadata != nil {
			meta := make(map[string]string, len(q.Metadata))
			for k, v := range q.Metadata {
				meta[k] = v
			}
			q.Metadata = meta
		}
		out.Questions[i] = q
	}
	out.CompletionCriteria = append([]CompletionCriterion(nil), d.CompletionCriteria...)
	return out
}

type bankFile struct {
	Archetypes []Definition `yaml:"archetypes"`
}

// LoadBankYAML reads archetypes from a YAML file and layers them over the built-in
// ones. An archetype with a built-in type id replaces the built-in definition.
func LoadBankYAML(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archetype file %s: %w", path, err)
	}
	return ParseBankYAML(data)
}

// ParseBankYAML is LoadBankYAML over an in-memory document.
func ParseBankYAML(data []byte) (*Bank, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse archetype YAML: %w", err)
	}
	for i := range file.Archetypes {
		if file.Archetypes[i].MaxSteps == 0 {
			file.Archetypes[i].MaxSteps = len(file.Archetypes[i].Questions)
		}
	}
	defs := append(DefaultDefinitions(), file.Archetypes...)
	return NewBank(defs...)
}
