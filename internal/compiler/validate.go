package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/ctorder/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Class errors (E101-E114)
	ErrInvalidClassName    = "E101" // class name is not an identifier
	ErrDuplicateBase       = "E102" // same base listed twice
	ErrDuplicateMember     = "E103" // same member name twice
	ErrMissingMemberType   = "E104" // member without a type
	ErrUnknownOp           = "E105" // action op not emit/call/fail
	ErrDuplicateInit       = "E106" // same initializer target twice
	ErrDelegationWithInits = "E107" // delegating constructor also lists initializers
	ErrPureWithBody        = "E108" // pure virtual method has a body
	ErrEmptyCallTarget     = "E109" // call action without a method name
	ErrUnknownBaseClass    = "E110" // base names an undeclared class
	ErrUnknownInitTarget   = "E111" // initializer target is not a base, virtual base or member
	ErrUnknownCtor         = "E112" // initializer or delegation names a missing constructor
	ErrDuplicateClass      = "E113" // class declared twice in one set
	ErrSelfDelegation      = "E114" // constructor delegates to itself
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Class   string `json:"class,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Class, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled class, or a set of classes, against the
// schema rules. It returns every error found rather than stopping at the
// first.
//
// A single ClassSpec is checked in isolation. A []ir.ClassSpec is also
// checked for references between classes: bases, initializer targets and
// constructor names.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.ClassSpec:
		return validateClass(spec)
	case ir.ClassSpec:
		return validateClass(&spec)
	case []ir.ClassSpec:
		return validateSet(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateClass(spec *ir.ClassSpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Class:   spec.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if !identPattern.MatchString(spec.Name) {
		add("name", ErrInvalidClassName, "class name %q is not an identifier", spec.Name)
	}

	bases := make(map[string]bool)
	for i, b := range spec.Bases {
		if bases[b.Class] {
			add(fmt.Sprintf("bases[%d]", i), ErrDuplicateBase, "duplicate base %q", b.Class)
		}
		bases[b.Class] = true
	}

	members := make(map[string]bool)
	for i, m := range spec.Members {
		if members[m.Name] {
			add(fmt.Sprintf("members[%d]", i), ErrDuplicateMember, "duplicate member %q", m.Name)
		}
		members[m.Name] = true
		if m.Type == "" {
			add(fmt.Sprintf("members[%d].type", i), ErrMissingMemberType, "member %q has no type", m.Name)
		}
	}

	for _, name := range ir.SortedKeys(spec.Constructors) {
		ctor := spec.Constructors[name]
		field := "constructors." + name

		seen := make(map[string]bool)
		for _, e := range ctor.Inits {
			if seen[e.Target] {
				add(field+".init", ErrDuplicateInit, "duplicate initializer for %q", e.Target)
			}
			seen[e.Target] = true
		}
		if ctor.Delegate != nil {
			if len(ctor.Inits) > 0 {
				add(field, ErrDelegationWithInits, "a delegating constructor cannot list initializers")
			}
			target := ctor.Delegate.Constructor
			if target == "" {
				target = ir.DefaultConstructor
			}
			if target == name {
				add(field+".delegate", ErrSelfDelegation, "constructor delegates to itself")
			}
		}
		errs = append(errs, validateActions(spec.Name, field+".body", ctor.Body)...)
	}

	errs = append(errs, validateActions(spec.Name, "destructor.body", spec.Destructor.Body)...)

	for _, name := range ir.SortedKeys(spec.Methods) {
		m := spec.Methods[name]
		field := "methods." + name
		if m.Pure && len(m.Body) > 0 {
			add(field, ErrPureWithBody, "pure virtual method %q has a body", name)
		}
		errs = append(errs, validateActions(spec.Name, field+".body", m.Body)...)
	}
	return errs
}

func validateActions(class, field string, actions []ir.Action) []ValidationError {
	var errs []ValidationError
	for i, a := range actions {
		f := fmt.Sprintf("%s[%d]", field, i)
		if !ir.ValidOps[a.Op] {
			errs = append(errs, ValidationError{
				Class: class, Field: f, Code: ErrUnknownOp,
				Message: fmt.Sprintf("unknown op %q", a.Op),
			})
			continue
		}
		if a.Op == ir.OpCall && a.Value == "" {
			errs = append(errs, ValidationError{
				Class: class, Field: f, Code: ErrEmptyCallTarget,
				Message: "call needs a method name",
			})
		}
	}
	return errs
}

// validateSet runs the single-class rules on each class and then checks
// the references between them.
func validateSet(specs []ir.ClassSpec) []ValidationError {
	var errs []ValidationError
	byName := make(map[string]*ir.ClassSpec, len(specs))
	for i := range specs {
		s := &specs[i]
		errs = append(errs, validateClass(s)...)
		if _, dup := byName[s.Name]; dup {
			errs = append(errs, ValidationError{
				Class: s.Name, Field: "name", Code: ErrDuplicateClass,
				Message: fmt.Sprintf("class %q declared twice", s.Name),
			})
			continue
		}
		byName[s.Name] = s
	}

	for i := range specs {
		s := &specs[i]
		for j, b := range s.Bases {
			if _, ok := byName[b.Class]; !ok {
				errs = append(errs, ValidationError{
					Class: s.Name, Field: fmt.Sprintf("bases[%d]", j), Code: ErrUnknownBaseClass,
					Message: fmt.Sprintf("unknown base class %q", b.Class),
				})
			}
		}
		errs = append(errs, validateReferences(s, byName)...)
	}
	return errs
}

// validateReferences checks initializer targets and constructor names.
// Targets may be direct bases, members or any virtual base reachable
// through the hierarchy.
func validateReferences(s *ir.ClassSpec, byName map[string]*ir.ClassSpec) []ValidationError {
	var errs []ValidationError
	targets := make(map[string]string) // target -> class of the sub-object
	for _, b := range s.Bases {
		targets[b.Class] = b.Class
	}
	for _, v := range reachableVirtualBases(s, byName) {
		targets[v] = v
	}
	for _, m := range s.Members {
		targets[m.Name] = m.Type
	}

	hasCtor := func(class, ctor string) bool {
		cs, ok := byName[class]
		if !ok {
			return true // scalar or unknown; reported elsewhere
		}
		if ctor == "" {
			ctor = ir.DefaultConstructor
		}
		if len(cs.Constructors) == 0 {
			return ctor == ir.DefaultConstructor
		}
		_, ok = cs.Constructors[ctor]
		return ok
	}

	for _, name := range ir.SortedKeys(s.Constructors) {
		ctor := s.Constructors[name]
		field := "constructors." + name
		for _, e := range ctor.Inits {
			class, ok := targets[e.Target]
			if !ok {
				errs = append(errs, ValidationError{
					Class: s.Name, Field: field + ".init", Code: ErrUnknownInitTarget,
					Message: fmt.Sprintf("%q is not a base, virtual base or member", e.Target),
				})
				continue
			}
			if !hasCtor(class, e.Init.Constructor) {
				errs = append(errs, ValidationError{
					Class: s.Name, Field: field + ".init." + e.Target, Code: ErrUnknownCtor,
					Message: fmt.Sprintf("%s has no constructor %q", class, e.Init.Constructor),
				})
			}
		}
		if ctor.Delegate != nil && !hasCtor(s.Name, ctor.Delegate.Constructor) {
			errs = append(errs, ValidationError{
				Class: s.Name, Field: field + ".delegate", Code: ErrUnknownCtor,
				Message: fmt.Sprintf("%s has no constructor %q", s.Name, ctor.Delegate.Constructor),
			})
		}
	}
	for _, m := range s.Members {
		if m.Default != nil && !hasCtor(m.Type, m.Default.Constructor) {
			errs = append(errs, ValidationError{
				Class: s.Name, Field: "members." + m.Name + ".default", Code: ErrUnknownCtor,
				Message: fmt.Sprintf("%s has no constructor %q", m.Type, m.Default.Constructor),
			})
		}
	}
	return errs
}

func reachableVirtualBases(s *ir.ClassSpec, byName map[string]*ir.ClassSpec) []string {
	var out []string
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	var walk func(*ir.ClassSpec)
	walk = func(c *ir.ClassSpec) {
		if visited[c.Name] {
			return
		}
		visited[c.Name] = true
		for _, b := range c.Bases {
			if b.Virtual && !seen[b.Class] {
				seen[b.Class] = true
				out = append(out, b.Class)
			}
			if next, ok := byName[b.Class]; ok {
				walk(next)
			}
		}
	}
	walk(s)
	return out
}
