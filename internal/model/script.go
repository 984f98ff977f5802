package model

import (
	"fmt"
	"strings"

	"github.com/roach88/ctorder/internal/ir"
)

// ScriptFailure is the failure raised by a "fail" action.
type ScriptFailure struct {
	Class   string
	Payload string
}

func (f *ScriptFailure) Error() string {
	return fmt.Sprintf("%s failed: %s", f.Class, f.Payload)
}

// FromSpecs converts compiled class specs into declarations.
func FromSpecs(specs []ir.ClassSpec) []ClassDecl {
	decls := make([]ClassDecl, len(specs))
	for i, s := range specs {
		decls[i] = FromSpec(s)
	}
	return decls
}

// FromSpec converts a compiled class spec into a declaration whose bodies
// and initializers interpret its emit, call and fail actions.
func FromSpec(spec ir.ClassSpec) ClassDecl {
	decl := ClassDecl{
		Name: spec.Name,
		Destructor: Destructor{
			Virtual: spec.Destructor.Virtual,
			Body:    scriptBody(spec.Name, spec.Destructor.Body),
		},
	}

	for _, b := range spec.Bases {
		decl.Bases = append(decl.Bases, BaseDecl{Class: b.Class, Virtual: b.Virtual})
	}
	for _, m := range spec.Members {
		md := MemberDecl{Name: m.Name, Type: m.Type}
		if m.Default != nil {
			md.Default = scriptInit(*m.Default)
		}
		decl.Members = append(decl.Members, md)
	}

	if len(spec.Constructors) > 0 {
		decl.Constructors = make(map[string]Constructor, len(spec.Constructors))
	}
	for name, c := range spec.Constructors {
		ctor := Constructor{Body: scriptBody(spec.Name, c.Body)}
		if len(c.Inits) > 0 {
			ctor.Inits = make(Inits, len(c.Inits))
			for _, e := range c.Inits {
				ctor.Inits[e.Target] = scriptInit(e.Init)
			}
		}
		if c.Delegate != nil {
			ctor.Delegate = &Delegation{
				Constructor: c.Delegate.Constructor,
				Arg:         scriptInit(*c.Delegate),
			}
			if ctor.Delegate.Constructor == "" {
				ctor.Delegate.Constructor = ir.DefaultConstructor
			}
		}
		decl.Constructors[name] = ctor
	}

	if len(spec.Methods) > 0 {
		decl.Methods = make(map[string]Method, len(spec.Methods))
	}
	for name, m := range spec.Methods {
		if m.Pure {
			decl.Methods[name] = nil
			continue
		}
		body := scriptBody(spec.Name, m.Body)
		if body == nil {
			body = func(Context) error { return nil }
		}
		decl.Methods[name] = body
	}
	return decl
}

// scriptInit yields the InitSpec with {arg}/{ARG} expanded against the
// argument of the layer that owns the initializer.
func scriptInit(spec ir.InitSpec) Initializer {
	return func(ctx Context) (Init, error) {
		return Init{
			Constructor: spec.Constructor,
			Arg:         Expand(spec.Arg, ctx.Arg()),
		}, nil
	}
}

// scriptBody runs actions in order and stops at the first failure.
func scriptBody(class string, actions []ir.Action) Body {
	if len(actions) == 0 {
		return nil
	}
	return func(ctx Context) error {
		for _, a := range actions {
			switch a.Op {
			case ir.OpEmit:
				ctx.Emit(Expand(a.Value, ctx.Arg()))
			case ir.OpCall:
				if err := ctx.Call(a.Value); err != nil {
					return err
				}
			case ir.OpFail:
				return &ScriptFailure{Class: class, Payload: Expand(a.Value, ctx.Arg())}
			default:
				return fmt.Errorf("unknown action %q in %s", a.Op, class)
			}
		}
		return nil
	}
}

// Expand substitutes {arg} with the argument and {ARG} with its upper-case
// form. A nil argument expands to the empty string.
func Expand(template string, arg any) string {
	if !strings.Contains(template, "{") {
		return template
	}
	s := ""
	if arg != nil {
		s = fmt.Sprint(arg)
	}
	return strings.NewReplacer("{arg}", s, "{ARG}", strings.ToUpper(s)).Replace(template)
}
