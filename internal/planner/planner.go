// Package planner computes construction and destruction plans.
//
// A plan is a pure function of a class's descriptor graph. It is derived
// from declaration order only; the order in which a constructor's
// initializer list names its bases and members never affects it.
//
// Two plans exist per class:
//
//   - Plan: the class is the most-derived type. Every virtual base in the
//     graph is built first, exactly once, in discovery order. Then come the
//     non-virtual direct bases and the members.
//   - LayerPlan: the class is built as a base sub-object of a more-derived
//     object. Its virtual bases are only references to the shared
//     sub-objects the most-derived object built.
package planner

import (
	"sync"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

// VirtualBases returns every virtual base reachable from d, each exactly
// once.
//
// The graph is walked depth-first, left to right, over every base (virtual
// or not). A virtual base is recorded after its own bases have been walked,
// so a virtual base always follows the virtual bases it depends on. This
// departs from plain first-encounter order on purpose: for V : virtual W,
// W comes before V even though V is seen first.
func VirtualBases(d *model.ClassDescriptor) []*model.ClassDescriptor {
	seen := make(map[*model.ClassDescriptor]bool)
	var out []*model.ClassDescriptor

	var walk func(c *model.ClassDescriptor)
	walk = func(c *model.ClassDescriptor) {
		for _, b := range c.Bases() {
			if !b.Virtual {
				walk(b.Class)
				continue
			}
			if seen[b.Class] {
				continue
			}
			seen[b.Class] = true
			walk(b.Class)
			out = append(out, b.Class)
		}
	}
	walk(d)
	return out
}

// Build returns the most-derived plan of d.
func Build(d *model.ClassDescriptor) ir.Plan {
	p := ir.Plan{Class: d.Name(), MostDerived: true}
	for _, v := range VirtualBases(d) {
		p.Steps = append(p.Steps, ir.Step{Kind: ir.StepVirtualBase, Target: v.Name(), Class: v.Name()})
	}
	p.Steps = append(p.Steps, ownSteps(d)...)
	return p
}

// BuildLayer returns the plan d follows as a base sub-object.
func BuildLayer(d *model.ClassDescriptor) ir.Plan {
	p := ir.Plan{Class: d.Name(), Steps: ownSteps(d)}
	for _, v := range VirtualBases(d) {
		p.References = append(p.References, v.Name())
	}
	return p
}

// ownSteps lists d's non-virtual direct bases, then its members, each in
// declaration order. A virtual direct base is skipped: it is either built
// by the most-derived plan or referenced.
func ownSteps(d *model.ClassDescriptor) []ir.Step {
	var steps []ir.Step
	for _, b := range d.Bases() {
		if b.Virtual {
			continue
		}
		steps = append(steps, ir.Step{Kind: ir.StepDirectBase, Target: b.Class.Name(), Class: b.Class.Name()})
	}
	for _, m := range d.Members() {
		steps = append(steps, ir.Step{Kind: ir.StepMember, Target: m.Name, Class: m.Type})
	}
	return steps
}

// Planner caches plans per descriptor.
//
// Cached plans are never mutated; callers receive copies of the step slice.
// A Planner is safe for concurrent use.
type Planner struct {
	mu     sync.RWMutex
	plans  map[*model.ClassDescriptor]ir.Plan
	layers map[*model.ClassDescriptor]ir.Plan
}

// New creates an empty planner.
func New() *Planner {
	return &Planner{
		plans:  make(map[*model.ClassDescriptor]ir.Plan),
		layers: make(map[*model.ClassDescriptor]ir.Plan),
	}
}

// Plan returns the cached most-derived plan of d.
func (p *Planner) Plan(d *model.ClassDescriptor) ir.Plan {
	return p.cached(p.plans, d, Build)
}

// LayerPlan returns the cached base sub-object plan of d.
func (p *Planner) LayerPlan(d *model.ClassDescriptor) ir.Plan {
	return p.cached(p.layers, d, BuildLayer)
}

func (p *Planner) cached(cache map[*model.ClassDescriptor]ir.Plan, d *model.ClassDescriptor, build func(*model.ClassDescriptor) ir.Plan) ir.Plan {
	p.mu.RLock()
	plan, ok := cache[d]
	p.mu.RUnlock()
	if ok {
		return clonePlan(plan)
	}

	plan = build(d)

	p.mu.Lock()
	if existing, ok := cache[d]; ok {
		plan = existing
	} else {
		cache[d] = plan
	}
	p.mu.Unlock()
	return clonePlan(plan)
}

func clonePlan(p ir.Plan) ir.Plan {
	out := p
	out.Steps = append([]ir.Step(nil), p.Steps...)
	out.References = append([]string(nil), p.References...)
	return out
}
