package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted lifetime of one or more objects with the outcome
// each step must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring the classes, relative to the
	// scenario file when loaded with LoadScenarioWithBasePath.
	Specs []string `yaml:"specs,omitempty"`

	// CUE holds class declarations inline. It is compiled after Specs.
	CUE string `yaml:"cue,omitempty"`

	// RunIDPrefix names the run ids of constructed objects:
	// "<prefix>-1", "<prefix>-2", ... Defaults to "run".
	RunIDPrefix string `yaml:"run_id_prefix,omitempty"`

	// Steps run in order against one engine.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the whole trace after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation. Exactly one of Construct, Destroy, DestroyVia,
// Call and Cast is set.
type Step struct {
	// Construct names the class to build. The object is stored under As,
	// or under the class name when As is empty.
	Construct   string             `yaml:"construct,omitempty"`
	As          string             `yaml:"as,omitempty"`
	Constructor string             `yaml:"ctor,omitempty"`
	Arg         string             `yaml:"arg,omitempty"`
	Args        map[string]ArgSpec `yaml:"args,omitempty"`

	// Destroy names an object to destroy through its own type.
	Destroy string `yaml:"destroy,omitempty"`

	// DestroyVia destroys an object through a handle of a base type.
	DestroyVia *ViaStep `yaml:"destroy_via,omitempty"`

	// Call issues a virtual call.
	Call *CallStep `yaml:"call,omitempty"`

	// Cast casts an object to a class.
	Cast *CastStep `yaml:"cast,omitempty"`

	// Expect checks the step's outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ViaStep names an object and the static type it is deleted through.
type ViaStep struct {
	Object string `yaml:"object"`
	Class  string `yaml:"class"`
}

// CallStep names an object and a method.
type CallStep struct {
	Object string `yaml:"object"`
	Method string `yaml:"method"`
}

// CastStep names an object, a target class and the cast mode.
type CastStep struct {
	Object string `yaml:"object"`
	Class  string `yaml:"class"`

	// Mode is "ref" (default) or "pointer".
	Mode string `yaml:"mode,omitempty"`
}

// Expect is the outcome a step must produce. Unset fields are not checked.
type Expect struct {
	// Output is the text the step emitted, concatenated.
	Output *string `yaml:"output,omitempty"`

	// Error is the error code: a runtime or model error code,
	// LIFECYCLE_FAILURE or CAST_FAILED. "none" requires success.
	Error string `yaml:"error,omitempty"`

	// FailurePath, FailureStep and Cause describe a LIFECYCLE_FAILURE.
	// Cause is matched as a substring of the failure's cause.
	FailurePath string `yaml:"failure_path,omitempty"`
	FailureStep string `yaml:"failure_step,omitempty"`
	Cause       string `yaml:"cause,omitempty"`

	// Phase is the object's phase after the step.
	Phase string `yaml:"phase,omitempty"`

	// Null requires a pointer cast to yield nothing.
	Null bool `yaml:"null,omitempty"`

	// Path is the sub-object path a successful cast lands on.
	Path string `yaml:"path,omitempty"`
}

// ArgSpec is an explicit initializer: a bare argument for the default
// constructor, or {ctor, arg}.
type ArgSpec struct {
	Constructor string `yaml:"ctor,omitempty"`
	Arg         string `yaml:"arg,omitempty"`
}

// UnmarshalYAML accepts a scalar or a mapping.
func (a *ArgSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Arg = node.Value
		return nil
	}
	type plain ArgSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = ArgSpec(p)
	return nil
}

// Assertion validates the whole trace.
type Assertion struct {
	// Type is one of output, trace_contains, trace_order, trace_count.
	Type string `yaml:"type"`

	// Equals is the full output text (output).
	Equals string `yaml:"equals,omitempty"`

	// Match selects events (trace_contains, trace_count).
	Match *EventMatch `yaml:"match,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count"`

	// Events must match in this relative order (trace_order).
	Events []EventMatch `yaml:"events,omitempty"`
}

// EventMatch selects trace events. Empty fields match anything.
type EventMatch struct {
	Kind   string `yaml:"kind,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Class  string `yaml:"class,omitempty"`
	Step   string `yaml:"step,omitempty"`
	Detail string `yaml:"detail,omitempty"`
}

// Assertion type constants.
const (
	AssertOutput        = "output"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// Error codes used in Expect.Error besides runtime and model codes.
const (
	CodeNone             = "none"
	CodeLifecycleFailure = "LIFECYCLE_FAILURE"
	CodeCastFailed       = "CAST_FAILED"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are left
// as written.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads a scenario and resolves its relative spec
// paths against basePath.
//
// Unknown fields are rejected, which catches typos like "asertions:".
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}
	for _, specPath := range scenario.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: spec file not found: %s", specPath)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 && s.CUE == "" {
		return fmt.Errorf("specs or cue is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	ops := 0
	if step.Construct != "" {
		ops++
	}
	if step.Destroy != "" {
		ops++
	}
	if step.DestroyVia != nil {
		ops++
		if step.DestroyVia.Object == "" || step.DestroyVia.Class == "" {
			return fmt.Errorf("destroy_via needs object and class")
		}
	}
	if step.Call != nil {
		ops++
		if step.Call.Object == "" || step.Call.Method == "" {
			return fmt.Errorf("call needs object and method")
		}
	}
	if step.Cast != nil {
		ops++
		if step.Cast.Object == "" || step.Cast.Class == "" {
			return fmt.Errorf("cast needs object and class")
		}
		switch step.Cast.Mode {
		case "", "ref", "pointer":
		default:
			return fmt.Errorf("cast mode must be ref or pointer, got %q", step.Cast.Mode)
		}
	}
	if ops != 1 {
		return fmt.Errorf("exactly one of construct, destroy, destroy_via, call, cast is required, got %d", ops)
	}
	if step.Construct == "" && (step.As != "" || step.Constructor != "" || step.Arg != "" || step.Args != nil) {
		return fmt.Errorf("as, ctor, arg and args only apply to construct")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertOutput:
		return nil
	case AssertTraceContains, AssertTraceCount:
		if a.Match == nil {
			return fmt.Errorf("%s requires match", a.Type)
		}
		return nil
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("trace_order requires at least two events")
		}
		return nil
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}
