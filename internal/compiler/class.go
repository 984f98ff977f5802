package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/ctorder/internal/ir"
)

// CompileSource compiles the classes declared in one CUE source. filename
// is used for error positions only.
func CompileSource(filename string, src []byte) ([]ir.ClassSpec, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return CompileClasses(v)
}

// CompileClasses compiles every entry of the top-level "class" struct, in
// declaration order. A value without a "class" field yields no specs.
//
//	class: B: { destructor: virtual: true }
//	class: D: { bases: ["B"] }
func CompileClasses(v cue.Value) ([]ir.ClassSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	classes := v.LookupPath(cue.ParsePath("class"))
	if !classes.Exists() {
		return []ir.ClassSpec{}, nil
	}
	iter, err := classes.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	specs := []ir.ClassSpec{}
	for iter.Next() {
		spec, err := CompileClass(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileClass parses a CUE value into a ClassSpec. The class name is the
// last label of the value's path:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`class: D: { bases: ["B"] }`)
//	spec, err := CompileClass(v.LookupPath(cue.ParsePath("class.D")))
func CompileClass(v cue.Value) (*ir.ClassSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ClassSpec{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	if spec.Name == "" {
		return nil, &CompileError{Field: "class", Message: "class name is required", Pos: v.Pos()}
	}
	c := classCompiler{name: spec.Name}

	var err error
	if spec.Bases, err = c.bases(v.LookupPath(cue.ParsePath("bases"))); err != nil {
		return nil, err
	}
	if spec.Members, err = c.members(v.LookupPath(cue.ParsePath("members"))); err != nil {
		return nil, err
	}
	if spec.Constructors, err = c.constructors(v.LookupPath(cue.ParsePath("constructors"))); err != nil {
		return nil, err
	}
	if spec.Destructor, err = c.destructor(v.LookupPath(cue.ParsePath("destructor"))); err != nil {
		return nil, err
	}
	if spec.Methods, err = c.methods(v.LookupPath(cue.ParsePath("methods"))); err != nil {
		return nil, err
	}
	return spec, nil
}

type classCompiler struct {
	name string
}

func (c classCompiler) errorf(field string, v cue.Value, format string, args ...any) error {
	return &CompileError{
		Class:   c.name,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	}
}

// bases accepts "B" or {class: "B", virtual: true} per entry.
func (c classCompiler) bases(v cue.Value) ([]ir.BaseSpec, error) {
	bases := []ir.BaseSpec{}
	if !v.Exists() {
		return bases, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, c.errorf("bases", v, "must be a list")
	}
	for iter.Next() {
		item := iter.Value()
		if name, err := item.String(); err == nil {
			bases = append(bases, ir.BaseSpec{Class: name})
			continue
		}
		name, err := requiredString(item, "class")
		if err != nil {
			return nil, c.errorf("bases", item, "entry must be a class name or {class, virtual}")
		}
		virtual, err := optionalBool(item, "virtual")
		if err != nil {
			return nil, c.errorf("bases", item, "virtual must be a bool")
		}
		bases = append(bases, ir.BaseSpec{Class: name, Virtual: virtual})
	}
	return bases, nil
}

func (c classCompiler) members(v cue.Value) ([]ir.MemberSpec, error) {
	members := []ir.MemberSpec{}
	if !v.Exists() {
		return members, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, c.errorf("members", v, "must be a list")
	}
	for iter.Next() {
		item := iter.Value()
		name, err := requiredString(item, "name")
		if err != nil {
			return nil, c.errorf("members", item, "name is required")
		}
		typ, err := requiredString(item, "type")
		if err != nil {
			return nil, c.errorf("members", item, "member %q: type is required", name)
		}
		m := ir.MemberSpec{Name: name, Type: typ}
		if def := item.LookupPath(cue.ParsePath("default")); def.Exists() {
			init, err := c.init("members."+name+".default", def)
			if err != nil {
				return nil, err
			}
			m.Default = &init
		}
		members = append(members, m)
	}
	return members, nil
}

func (c classCompiler) constructors(v cue.Value) (map[string]ir.ConstructorSpec, error) {
	ctors := map[string]ir.ConstructorSpec{}
	if !v.Exists() {
		return ctors, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, c.errorf("constructors", v, "must be a struct keyed by constructor name")
	}
	for iter.Next() {
		name := iter.Label()
		body := iter.Value()
		field := "constructors." + name

		var ctor ir.ConstructorSpec
		if inits := body.LookupPath(cue.ParsePath("init")); inits.Exists() {
			fields, err := inits.Fields()
			if err != nil {
				return nil, c.errorf(field+".init", inits, "must be a struct keyed by base or member")
			}
			// Field order is the textual order; planning ignores it.
			for fields.Next() {
				target := fields.Label()
				init, err := c.init(field+".init."+target, fields.Value())
				if err != nil {
					return nil, err
				}
				ctor.Inits = append(ctor.Inits, ir.InitEntry{Target: target, Init: init})
			}
		}
		if del := body.LookupPath(cue.ParsePath("delegate")); del.Exists() {
			init, err := c.init(field+".delegate", del)
			if err != nil {
				return nil, err
			}
			ctor.Delegate = &init
		}
		if ctor.Body, err = c.actions(field+".body", body.LookupPath(cue.ParsePath("body"))); err != nil {
			return nil, err
		}
		ctors[name] = ctor
	}
	return ctors, nil
}

func (c classCompiler) destructor(v cue.Value) (ir.DestructorSpec, error) {
	var d ir.DestructorSpec
	if !v.Exists() {
		return d, nil
	}
	virtual, err := optionalBool(v, "virtual")
	if err != nil {
		return d, c.errorf("destructor.virtual", v, "must be a bool")
	}
	d.Virtual = virtual
	if d.Body, err = c.actions("destructor.body", v.LookupPath(cue.ParsePath("body"))); err != nil {
		return d, err
	}
	return d, nil
}

func (c classCompiler) methods(v cue.Value) (map[string]ir.MethodSpec, error) {
	methods := map[string]ir.MethodSpec{}
	if !v.Exists() {
		return methods, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, c.errorf("methods", v, "must be a struct keyed by method name")
	}
	for iter.Next() {
		name := iter.Label()
		body := iter.Value()
		pure, err := optionalBool(body, "pure")
		if err != nil {
			return nil, c.errorf("methods."+name+".pure", body, "must be a bool")
		}
		actions, err := c.actions("methods."+name+".body", body.LookupPath(cue.ParsePath("body")))
		if err != nil {
			return nil, err
		}
		if pure && len(actions) > 0 {
			return nil, c.errorf("methods."+name, body, "a pure virtual method has no body")
		}
		methods[name] = ir.MethodSpec{Pure: pure, Body: actions}
	}
	return methods, nil
}

// init accepts a scalar argument ("1", 1, true) for the default constructor
// or {ctor, arg} for a named one.
func (c classCompiler) init(field string, v cue.Value) (ir.InitSpec, error) {
	if arg, ok := scalarText(v); ok {
		return ir.InitSpec{Arg: arg}, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return ir.InitSpec{}, c.errorf(field, v, "must be an argument or {ctor, arg}")
	}
	var init ir.InitSpec
	if ctor := v.LookupPath(cue.ParsePath("ctor")); ctor.Exists() {
		s, err := ctor.String()
		if err != nil {
			return init, c.errorf(field+".ctor", ctor, "must be a string")
		}
		init.Constructor = s
	}
	if arg := v.LookupPath(cue.ParsePath("arg")); arg.Exists() {
		s, ok := scalarText(arg)
		if !ok {
			return init, c.errorf(field+".arg", arg, "must be a string, int or bool")
		}
		init.Arg = s
	}
	return init, nil
}

// actions parses [{emit: "x"}, {call: "f"}, {fail: "p"}].
func (c classCompiler) actions(field string, v cue.Value) ([]ir.Action, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, c.errorf(field, v, "must be a list of actions")
	}
	var actions []ir.Action
	for iter.Next() {
		item := iter.Value()
		fields, err := item.Fields()
		if err != nil {
			return nil, c.errorf(field, item, "action must be a struct with one op")
		}
		var found []ir.Action
		for fields.Next() {
			op := fields.Label()
			if !ir.ValidOps[op] {
				return nil, c.errorf(field, fields.Value(), "unknown op %q", op)
			}
			val, ok := scalarText(fields.Value())
			if !ok {
				return nil, c.errorf(field, fields.Value(), "%s value must be a string", op)
			}
			found = append(found, ir.Action{Op: op, Value: val})
		}
		if len(found) != 1 {
			return nil, c.errorf(field, item, "action must have exactly one op, got %d", len(found))
		}
		actions = append(actions, found[0])
	}
	return actions, nil
}

func requiredString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", fmt.Errorf("%s is required", name)
	}
	return f.String()
}

func optionalBool(v cue.Value, name string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return false, nil
	}
	return f.Bool()
}

// scalarText renders string, int and bool values as text. Floats are
// rejected so that arguments stay exact.
func scalarText(v cue.Value) (string, bool) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		return s, err == nil
	case cue.IntKind:
		n, err := v.Int64()
		return strconv.FormatInt(n, 10), err == nil
	case cue.BoolKind:
		b, err := v.Bool()
		return strconv.FormatBool(b), err == nil
	default:
		return "", false
	}
}
