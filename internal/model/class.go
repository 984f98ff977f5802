package model

import "github.com/roach88/ctorder/internal/ir"

// Context is what a body or initializer sees while it runs.
// The engine provides the implementation.
type Context interface {
	// Arg returns the argument the running constructor received.
	Arg() any

	// Class returns the layer whose code is running.
	Class() string

	// Path returns the sub-object path of that layer.
	Path() string

	// Emit records text in the trace.
	Emit(text string)

	// Call issues a virtual call on the object under construction or
	// destruction. Resolution follows the active layer.
	Call(method string) error
}

// Body is a constructor, destructor or method body.
// A non-nil error is a failure of the body.
type Body func(ctx Context) error

// Method is a virtual method implementation.
type Method = Body

// Init selects the constructor to run on a sub-object and its argument.
type Init struct {
	Constructor string // empty = ir.DefaultConstructor
	Arg         any
}

// ConstructorName returns the effective constructor name.
func (i Init) ConstructorName() string {
	if i.Constructor == "" {
		return ir.DefaultConstructor
	}
	return i.Constructor
}

// Initializer computes the Init of one sub-object. It runs in the frame of
// the layer that owns the initializer list and may fail.
type Initializer func(ctx Context) (Init, error)

// Value returns an Initializer that runs the default constructor with arg.
func Value(arg any) Initializer {
	return func(Context) (Init, error) {
		return Init{Arg: arg}, nil
	}
}

// With returns an Initializer that runs the named constructor with arg.
func With(constructor string, arg any) Initializer {
	return func(Context) (Init, error) {
		return Init{Constructor: constructor, Arg: arg}, nil
	}
}

// ArgSource supplies explicit initializers keyed by the base class name or
// member name they initialize.
type ArgSource interface {
	Initializer(target string) (Initializer, bool)
}

// Inits is a map-backed ArgSource.
type Inits map[string]Initializer

// Initializer implements ArgSource.
func (i Inits) Initializer(target string) (Initializer, bool) {
	init, ok := i[target]
	return init, ok && init != nil
}

// Delegation names the constructor of the same class a delegating
// constructor forwards to.
type Delegation struct {
	Constructor string
	Arg         Initializer // nil = no argument
}

// Constructor is one constructor of a class.
type Constructor struct {
	Inits    Inits
	Delegate *Delegation
	Body     Body
}

// Destructor is the destructor of a class.
type Destructor struct {
	Virtual bool
	Body    Body
}

// BaseDecl names a base class in a declaration.
type BaseDecl struct {
	Class   string
	Virtual bool
}

// MemberDecl declares a data member.
// Type names a declared class or a scalar type.
type MemberDecl struct {
	Name    string
	Type    string
	Default Initializer // in-class default initializer, optional
}

// ClassDecl is the input to Registry.Declare.
//
// A class without constructors gets an implicit default constructor.
// A nil entry in Methods declares a pure virtual method.
type ClassDecl struct {
	Name         string
	Bases        []BaseDecl
	Members      []MemberDecl
	Constructors map[string]Constructor
	Destructor   Destructor
	Methods      map[string]Method
}

// BaseRef is a resolved base of a ClassDescriptor.
type BaseRef struct {
	Class   *ClassDescriptor
	Virtual bool
}

// MemberSlot is a resolved data member.
type MemberSlot struct {
	Name    string
	Type    string
	Class   *ClassDescriptor // nil for scalar members
	Default Initializer
}

// IsScalar reports whether the member has no class type.
func (m MemberSlot) IsScalar() bool {
	return m.Class == nil
}

// Implementation is the target of a virtual call.
type Implementation struct {
	Owner  string // class that declares the implementation
	Method string
	Fn     Method // nil for a pure virtual declaration
}

// Pure reports whether the implementation is a pure virtual declaration.
func (i Implementation) Pure() bool {
	return i.Fn == nil
}

// ClassDescriptor is the immutable description of a declared class.
type ClassDescriptor struct {
	name         string
	bases        []BaseRef
	members      []MemberSlot
	constructors map[string]*Constructor
	destructor   Destructor
	methods      map[string]Method
	overrides    map[string]Implementation
	virtualDtor  bool
}

// Name returns the class name.
func (d *ClassDescriptor) Name() string { return d.name }

// Bases returns the bases in declaration order.
func (d *ClassDescriptor) Bases() []BaseRef {
	out := make([]BaseRef, len(d.bases))
	copy(out, d.bases)
	return out
}

// Members returns the members in declaration order.
func (d *ClassDescriptor) Members() []MemberSlot {
	out := make([]MemberSlot, len(d.members))
	copy(out, d.members)
	return out
}

// Member returns the member with the given name.
func (d *ClassDescriptor) Member(name string) (MemberSlot, bool) {
	for _, m := range d.members {
		if m.Name == name {
			return m, true
		}
	}
	return MemberSlot{}, false
}

// Constructor returns the named constructor.
func (d *ClassDescriptor) Constructor(name string) (*Constructor, bool) {
	if name == "" {
		name = ir.DefaultConstructor
	}
	c, ok := d.constructors[name]
	return c, ok
}

// Destructor returns the destructor.
func (d *ClassDescriptor) Destructor() Destructor { return d.destructor }

// HasVirtualDestructor reports whether the destructor is virtual, either
// declared so or inherited from any base.
func (d *ClassDescriptor) HasVirtualDestructor() bool { return d.virtualDtor }

// Declares reports whether the class itself declares the method.
func (d *ClassDescriptor) Declares(method string) bool {
	_, ok := d.methods[method]
	return ok
}

// Lookup resolves a virtual method as seen from this class: its own
// declaration, otherwise the final overrider among its bases. An override
// in a class derived from another candidate's owner hides that candidate;
// unrelated candidates resolve to the earliest base in declaration order.
func (d *ClassDescriptor) Lookup(method string) (Implementation, bool) {
	impl, ok := d.overrides[method]
	return impl, ok
}

// DerivesFrom reports whether other is d or any (transitive) base of d.
func (d *ClassDescriptor) DerivesFrom(other string) bool {
	if d.name == other {
		return true
	}
	for _, b := range d.bases {
		if b.Class.DerivesFrom(other) {
			return true
		}
	}
	return false
}

// BasePaths returns the paths of the target sub-objects of a d layer at
// path self inside the complete object at path root. Virtual occurrences
// of target collapse into one path directly under root. An empty result
// means target is not a base of d; more than one means it is ambiguous.
func (d *ClassDescriptor) BasePaths(target, self, root string) []string {
	if d.name == target {
		return []string{self}
	}
	seen := make(map[string]bool)
	var paths []string
	var walk func(c *ClassDescriptor, prefix string)
	walk = func(c *ClassDescriptor, prefix string) {
		for _, b := range c.bases {
			p := prefix + "::" + b.Class.name
			if b.Virtual {
				p = root + "::" + b.Class.name
			}
			if b.Class.name == target && !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
			walk(b.Class, p)
		}
	}
	walk(d, self)
	return paths
}

// reachesVirtually reports whether name is a virtual base anywhere in d's
// inheritance graph.
func (d *ClassDescriptor) reachesVirtually(name string) bool {
	for _, b := range d.bases {
		if b.Virtual && b.Class.name == name {
			return true
		}
		if b.Class.reachesVirtually(name) {
			return true
		}
	}
	return false
}
