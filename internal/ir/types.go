package ir

// DefaultConstructor is the name of the constructor used when none is requested.
const DefaultConstructor = "default"

// ClassSpec represents a compiled class declaration.
//
// Bases and Members are in declaration order. That order alone decides
// lifecycle sequencing; Constructors[*].Inits order is never consulted.
type ClassSpec struct {
	Name         string                     `json:"name"`
	Bases        []BaseSpec                 `json:"bases"`
	Members      []MemberSpec               `json:"members"`
	Constructors map[string]ConstructorSpec `json:"constructors"`
	Destructor   DestructorSpec             `json:"destructor"`
	Methods      map[string]MethodSpec      `json:"methods"`
}

// BaseSpec names a base class and whether it is inherited virtually.
type BaseSpec struct {
	Class   string `json:"class"`
	Virtual bool   `json:"virtual"`
}

// MemberSpec represents a data member.
// Type names either a declared class or a scalar type such as "int".
type MemberSpec struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Default *InitSpec `json:"default,omitempty"` // in-class default initializer
}

// InitSpec is one initializer-list entry: which constructor of the
// sub-object to run and the argument it receives.
type InitSpec struct {
	Constructor string `json:"constructor,omitempty"` // empty = DefaultConstructor
	Arg         string `json:"arg"`
}

// InitEntry is an initializer keyed by the base class or member it initializes.
type InitEntry struct {
	Target string   `json:"target"`
	Init   InitSpec `json:"init"`
}

// ConstructorSpec represents one constructor of a class.
//
// Inits keeps the textual order in which the entries were written so that
// tooling can show it; planning ignores it.
type ConstructorSpec struct {
	Inits    []InitEntry `json:"inits,omitempty"`
	Delegate *InitSpec   `json:"delegate,omitempty"` // delegating constructor target
	Body     []Action    `json:"body,omitempty"`
}

// DestructorSpec represents a class destructor.
type DestructorSpec struct {
	Virtual bool     `json:"virtual"`
	Body    []Action `json:"body,omitempty"`
}

// MethodSpec represents a virtual method declared by a class.
type MethodSpec struct {
	Pure bool     `json:"pure,omitempty"`
	Body []Action `json:"body,omitempty"`
}

// Action operations understood by the script interpreter.
const (
	OpEmit = "emit" // write text to the trace; {arg} and {ARG} are substituted
	OpCall = "call" // issue a virtual call
	OpFail = "fail" // fail with the given payload
)

// ValidOps defines allowed action operations.
var ValidOps = map[string]bool{
	OpEmit: true,
	OpCall: true,
	OpFail: true,
}

// Action is one statement of a constructor, destructor or method body.
type Action struct {
	Op    string `json:"op"`
	Value string `json:"value"`
}
