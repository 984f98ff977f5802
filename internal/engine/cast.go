package engine

import (
	"fmt"

	"github.com/roach88/ctorder/internal/model"
)

// CastMode selects how a failed cast is reported.
type CastMode int

const (
	// CastRef reports a failed cast as a *CastError.
	CastRef CastMode = iota

	// CastPointer reports a failed cast as a nil View and a nil error.
	CastPointer
)

// View is a typed handle on a sub-object of an instance.
type View struct {
	Instance *Instance
	Class    string
	Path     string
}

// Cast reinterprets inst as target, as a dynamic cast does.
//
// The cast succeeds when target is the dynamic type or one of its bases
// reached through exactly one sub-object. During construction or
// destruction the dynamic type is the active layer, so a cast to a class
// more derived than that layer fails. Cast never changes inst.
func (e *Engine) Cast(inst *Instance, target string, mode CastMode) (*View, error) {
	if inst.phase == PhaseDestroyed {
		return nil, newRuntimeError(ErrObjectDestroyed, inst, inst.class.Name(), "")
	}
	if _, err := e.registry.Describe(target); err != nil {
		return nil, err
	}

	dyn, self := inst.dynamicType()
	path, cerr := e.subObjectPath(inst, dyn, self, target)
	if cerr != nil {
		if mode == CastPointer {
			return nil, nil
		}
		return nil, cerr
	}
	return &View{Instance: inst, Class: target, Path: path}, nil
}

// subObjectPath finds the single sub-object of class target seen from the
// layer dyn at path self.
func (e *Engine) subObjectPath(inst *Instance, dyn *model.ClassDescriptor, self, target string) (string, *CastError) {
	paths := dyn.BasePaths(target, self, inst.path)
	switch len(paths) {
	case 1:
		return paths[0], nil
	case 0:
		return "", &CastError{Object: inst.path, Dynamic: dyn.Name(), Target: target, Reason: "not a base of the dynamic type"}
	default:
		return "", &CastError{Object: inst.path, Dynamic: dyn.Name(), Target: target, Reason: fmt.Sprintf("ambiguous: %d sub-objects", len(paths))}
	}
}
