// Package flowfile loads flow definitions from YAML files. Functions
// (conditions, predicates, hooks) cannot live in YAML; the file refers
// to them by name and a Registry binds those names to Go functions at
// load time.
//
// A flow file looks like:
//
//	flow: onboarding
//	name: User Onboarding
//	version: "2"
//	initialData:
//	  plan: free
//	steps:
//	  - id: welcome
//	    type: INFORMATION
//	  - id: profile
//	    type: FORM
//	    condition: needsProfile
//	    onComplete: saveProfile
//	  - id: branch
//	    type: CUSTOM
//	    next: {resolver: pickTrack}
//	  - id: finish
//	    type: CONFIRMATION
//	    next: null
//
// Navigation targets distinguish four cases: an absent key falls back
// to sequential order, an explicit null ends the flow, a scalar names a
// step, and {resolver: name} binds a predicate from the registry.
package flowfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/stepflow/pkg/api"
)

// ParseError is a flow file problem with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Registry binds the function names a flow file uses to Go functions.
// All setters return the registry for chaining.
type Registry struct {
	conditions map[string]api.ConditionFunc
	predicates map[string]api.PredicateFunc
	active     map[string]api.ActiveHook
	complete   map[string]api.CompleteHook
}

func NewRegistry() *Registry {
	return &Registry{
		conditions: make(map[string]api.ConditionFunc),
		predicates: make(map[string]api.PredicateFunc),
		active:     make(map[string]api.ActiveHook),
		complete:   make(map[string]api.CompleteHook),
	}
}

func (r *Registry) Condition(name string, fn api.ConditionFunc) *Registry {
	r.conditions[name] = fn
	return r
}

func (r *Registry) Predicate(name string, fn api.PredicateFunc) *Registry {
	r.predicates[name] = fn
	return r
}

func (r *Registry) OnActive(name string, fn api.ActiveHook) *Registry {
	r.active[name] = fn
	return r
}

func (r *Registry) OnComplete(name string, fn api.CompleteHook) *Registry {
	r.complete[name] = fn
	return r
}

// stepID decodes any YAML scalar as a step id, so numeric ids come out
// as their decimal text.
type stepID string

func (s *stepID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.Tag == "!!null" {
		return fmt.Errorf("line %d: step id must be a scalar", value.Line)
	}
	*s = stepID(value.Value)
	return nil
}

// navRef is a parsed navigation target. The zero value means the key
// was absent from the document.
type navRef struct {
	set      bool
	terminal bool
	literal  string
	resolver string
	line     int
}

func (r *navRef) UnmarshalYAML(value *yaml.Node) error {
	r.set = true
	r.line = value.Line
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			r.terminal = true
			return nil
		}
		r.literal = value.Value
		return nil
	case yaml.MappingNode:
		var m struct {
			Resolver string `yaml:"resolver"`
		}
		if err := value.Decode(&m); err != nil {
			return err
		}
		if m.Resolver == "" {
			return fmt.Errorf("line %d: navigation mapping requires a resolver name", value.Line)
		}
		r.resolver = m.Resolver
		return nil
	default:
		return fmt.Errorf("line %d: navigation target must be a step id, null, or {resolver: name}", value.Line)
	}
}

type fileDoc struct {
	Flow        string         `yaml:"flow"`
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	InitialData map[string]any `yaml:"initialData"`
	Steps       []stepDoc      `yaml:"steps"`
}

type stepDoc struct {
	ID         stepID         `yaml:"id"`
	Type       string         `yaml:"type"`
	Payload    map[string]any `yaml:"payload"`
	Condition  string         `yaml:"condition"`
	Next       *navRef        `yaml:"next"`
	Previous   *navRef        `yaml:"previous"`
	Skippable  bool           `yaml:"skippable"`
	SkipTo     *navRef        `yaml:"skipTo"`
	OnActive   string         `yaml:"onActive"`
	OnComplete string         `yaml:"onComplete"`
	Checklist  *checklistDoc  `yaml:"checklist"`
	Meta       map[string]any `yaml:"meta"`
}

type checklistDoc struct {
	DataKey            string             `yaml:"dataKey"`
	MinItemsToComplete int                `yaml:"minItemsToComplete"`
	Items              []checklistItemDoc `yaml:"items"`
}

type checklistItemDoc struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	Mandatory bool   `yaml:"mandatory"`
}

// LoadFile reads and parses path into an engine Config.
func LoadFile(path string, reg *Registry) (api.Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is a caller-provided flow file
	if err != nil {
		return api.Config{}, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Parse(data, path, reg)
}

// Parse parses YAML content into an engine Config. sourcePath is used
// in error messages only.
func Parse(data []byte, sourcePath string, reg *Registry) (api.Config, error) {
	if reg == nil {
		reg = NewRegistry()
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return api.Config{}, &ParseError{Path: sourcePath, Message: err.Error()}
	}
	if doc.Flow == "" {
		return api.Config{}, &ParseError{Path: sourcePath, Message: "missing flow id"}
	}
	if len(doc.Steps) == 0 {
		return api.Config{}, &ParseError{Path: sourcePath, Message: "flow has no steps"}
	}

	cfg := api.Config{
		FlowID:          doc.Flow,
		FlowName:        doc.Name,
		FlowVersion:     doc.Version,
		InitialFlowData: doc.InitialData,
		Steps:           make([]api.Step, 0, len(doc.Steps)),
	}

	for i := range doc.Steps {
		step, err := buildStep(&doc.Steps[i], reg, sourcePath)
		if err != nil {
			return api.Config{}, err
		}
		cfg.Steps = append(cfg.Steps, step)
	}

	if err := cfg.Validate(); err != nil {
		return api.Config{}, &ParseError{Path: sourcePath, Message: err.Error()}
	}
	return cfg, nil
}

func buildStep(d *stepDoc, reg *Registry, path string) (api.Step, error) {
	step := api.Step{
		ID:        api.StepID(d.ID),
		Type:      api.StepType(d.Type),
		Payload:   d.Payload,
		Skippable: d.Skippable,
		Meta:      d.Meta,
	}
	if step.Type == "" {
		step.Type = api.StepTypeCustom
	}

	if d.Condition != "" {
		fn, ok := reg.conditions[d.Condition]
		if !ok {
			return api.Step{}, &ParseError{Path: path, Message: fmt.Sprintf("step %q: unknown condition %q", d.ID, d.Condition)}
		}
		step.Condition = fn
	}
	if d.OnActive != "" {
		fn, ok := reg.active[d.OnActive]
		if !ok {
			return api.Step{}, &ParseError{Path: path, Message: fmt.Sprintf("step %q: unknown onActive hook %q", d.ID, d.OnActive)}
		}
		step.OnActive = fn
	}
	if d.OnComplete != "" {
		fn, ok := reg.complete[d.OnComplete]
		if !ok {
			return api.Step{}, &ParseError{Path: path, Message: fmt.Sprintf("step %q: unknown onComplete hook %q", d.ID, d.OnComplete)}
		}
		step.OnComplete = fn
	}

	var err error
	if step.Next, err = buildTarget(d.Next, reg, path, d.ID, "next"); err != nil {
		return api.Step{}, err
	}
	if step.Previous, err = buildTarget(d.Previous, reg, path, d.ID, "previous"); err != nil {
		return api.Step{}, err
	}
	if step.SkipTo, err = buildTarget(d.SkipTo, reg, path, d.ID, "skipTo"); err != nil {
		return api.Step{}, err
	}

	if d.Checklist != nil {
		cl := &api.ChecklistConfig{
			DataKey:            d.Checklist.DataKey,
			MinItemsToComplete: d.Checklist.MinItemsToComplete,
			Items:              make([]api.ChecklistItem, 0, len(d.Checklist.Items)),
		}
		if len(d.Checklist.Items) == 0 {
			return api.Step{}, &ParseError{Path: path, Message: fmt.Sprintf("step %q: checklist has no items", d.ID)}
		}
		for _, it := range d.Checklist.Items {
			if it.ID == "" {
				return api.Step{}, &ParseError{Path: path, Message: fmt.Sprintf("step %q: checklist item without id", d.ID)}
			}
			cl.Items = append(cl.Items, api.ChecklistItem{
				ID:        it.ID,
				Label:     it.Label,
				Mandatory: it.Mandatory,
			})
		}
		step.Checklist = cl
	}

	return step, nil
}

func buildTarget(r *navRef, reg *Registry, path string, id stepID, field string) (*api.NavigationTarget, error) {
	if r == nil || !r.set {
		return nil, nil
	}
	switch {
	case r.terminal:
		return api.Terminal(), nil
	case r.resolver != "":
		fn, ok := reg.predicates[r.resolver]
		if !ok {
			return nil, &ParseError{
				Path:    path,
				Line:    r.line,
				Message: fmt.Sprintf("step %q: unknown %s resolver %q", id, field, r.resolver),
			}
		}
		return api.ResolveWith(fn), nil
	default:
		return api.To(api.StepID(r.literal)), nil
	}
}
