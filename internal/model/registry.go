package model

import (
	"sync"

	"github.com/roach88/ctorder/internal/ir"
)

// Registry owns every declared ClassDescriptor.
//
// Declarations only ever add classes; a descriptor never changes after
// Declare returns it. Describe is safe to call concurrently with Declare.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*ClassDescriptor
	order   []string // declaration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*ClassDescriptor)}
}

// Describe returns the descriptor of a declared class.
func (r *Registry) Describe(name string) (*ClassDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.classes[name]
	if !ok {
		return nil, newModelError(ErrCodeUnknownClass, name, "class %q is not declared", name)
	}
	return d, nil
}

// Names returns the declared class names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Declare validates decl and registers it.
//
// Bases and class-typed members must already be declared; a member whose
// type is not a declared class is a scalar. Use DeclareAll for forward
// references.
func (r *Registry) Declare(decl ClassDecl) (*ClassDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.declareLocked(decl)
}

func (r *Registry) declareLocked(decl ClassDecl) (*ClassDescriptor, error) {
	name := decl.Name
	if name == "" {
		return nil, newModelError(ErrCodeEmptyName, "", "class name is required")
	}
	if _, exists := r.classes[name]; exists {
		return nil, newModelError(ErrCodeDuplicateClass, name, "class %q is already declared", name)
	}

	d := &ClassDescriptor{
		name:         name,
		constructors: make(map[string]*Constructor),
		destructor:   decl.Destructor,
		methods:      make(map[string]Method, len(decl.Methods)),
		overrides:    make(map[string]Implementation),
		virtualDtor:  decl.Destructor.Virtual,
	}

	seenBases := make(map[string]bool)
	for _, b := range decl.Bases {
		if b.Class == name {
			return nil, &ModelError{
				Code:    ErrCodeCycle,
				Class:   name,
				Message: "class inherits from itself",
				Path:    []string{name, name},
			}
		}
		if seenBases[b.Class] {
			return nil, newModelError(ErrCodeDuplicateBase, name, "base %q listed more than once", b.Class)
		}
		seenBases[b.Class] = true

		base, ok := r.classes[b.Class]
		if !ok {
			return nil, newModelError(ErrCodeUnknownClass, name, "base %q is not declared", b.Class)
		}
		d.bases = append(d.bases, BaseRef{Class: base, Virtual: b.Virtual})
		if base.virtualDtor {
			d.virtualDtor = true
		}
	}

	seenMembers := make(map[string]bool)
	for _, m := range decl.Members {
		if m.Name == "" || m.Type == "" {
			return nil, newModelError(ErrCodeEmptyName, name, "member name and type are required")
		}
		if seenMembers[m.Name] || seenBases[m.Name] {
			return nil, newModelError(ErrCodeDuplicateMember, name, "member %q collides with another member or base", m.Name)
		}
		seenMembers[m.Name] = true
		if m.Type == name {
			return nil, &ModelError{
				Code:    ErrCodeCycle,
				Class:   name,
				Message: "class contains itself by value",
				Path:    []string{name, name},
			}
		}

		slot := MemberSlot{Name: m.Name, Type: m.Type, Default: m.Default}
		if c, ok := r.classes[m.Type]; ok {
			slot.Class = c
		}
		d.members = append(d.members, slot)
	}

	if len(decl.Constructors) == 0 {
		d.constructors[ir.DefaultConstructor] = &Constructor{}
	}
	for ctorName, c := range decl.Constructors {
		d.constructors[ctorName] = &c
	}
	if err := validateConstructors(d); err != nil {
		return nil, err
	}

	// Own methods first. An inherited entry replaces one taken from an
	// earlier base when its owner derives from that entry's owner, so the
	// final overrider wins over the one it overrides. Between unrelated
	// owners the earlier base in declaration order wins.
	for method, fn := range decl.Methods {
		d.methods[method] = fn
		d.overrides[method] = Implementation{Owner: name, Method: method, Fn: fn}
	}
	for _, b := range d.bases {
		for method, impl := range b.Class.overrides {
			if d.Declares(method) {
				continue
			}
			cur, ok := d.overrides[method]
			if !ok || r.dominates(impl.Owner, cur.Owner) {
				d.overrides[method] = impl
			}
		}
	}

	r.classes[name] = d
	r.order = append(r.order, name)
	return d, nil
}

// dominates reports whether owner is a class derived from other, so that
// its override hides other's.
func (r *Registry) dominates(owner, other string) bool {
	if owner == other {
		return false
	}
	c, ok := r.classes[owner]
	return ok && c.DerivesFrom(other)
}

// validateConstructors checks initializer targets and delegation chains.
func validateConstructors(d *ClassDescriptor) error {
	for _, ctorName := range ir.SortedKeys(d.constructors) {
		c := d.constructors[ctorName]

		if c.Delegate != nil {
			if len(c.Inits) > 0 {
				return newModelError(ErrCodeDelegationInits, d.name,
					"constructor %q delegates and also lists initializers", ctorName)
			}
			if _, ok := d.constructors[c.Delegate.Constructor]; !ok {
				return newModelError(ErrCodeUnknownConstructor, d.name,
					"constructor %q delegates to undeclared constructor %q", ctorName, c.Delegate.Constructor)
			}
		}

		for _, target := range ir.SortedKeys(c.Inits) {
			if !d.initializes(target) {
				return newModelError(ErrCodeUnknownInitializer, d.name,
					"constructor %q initializes %q, which is neither a base nor a member", ctorName, target)
			}
		}
	}

	// Follow each delegation chain; a repeat is a cycle.
	for _, start := range ir.SortedKeys(d.constructors) {
		visited := map[string]bool{start: true}
		path := []string{start}
		cur := d.constructors[start]
		for cur.Delegate != nil {
			next := cur.Delegate.Constructor
			path = append(path, next)
			if visited[next] {
				return &ModelError{
					Code:    ErrCodeDelegationCycle,
					Class:   d.name,
					Message: "constructor delegation never reaches a non-delegating constructor",
					Path:    path,
				}
			}
			visited[next] = true
			cur = d.constructors[next]
		}
	}
	return nil
}

// initializes reports whether an initializer list entry may name target:
// a direct base, a member, or a virtual base anywhere in the graph.
func (d *ClassDescriptor) initializes(target string) bool {
	for _, b := range d.bases {
		if b.Class.name == target {
			return true
		}
	}
	for _, m := range d.members {
		if m.Name == target {
			return true
		}
	}
	return d.reachesVirtually(target)
}

// DeclareAll declares a batch of classes that may reference each other in
// any order. Base and by-value member edges must form a DAG: a cycle is a
// CYCLE ModelError and nothing from the batch is registered.
func (r *Registry) DeclareAll(decls []ClassDecl) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName := make(map[string]ClassDecl, len(decls))
	var names []string
	for _, decl := range decls {
		if decl.Name == "" {
			return newModelError(ErrCodeEmptyName, "", "class name is required")
		}
		if _, dup := byName[decl.Name]; dup {
			return newModelError(ErrCodeDuplicateClass, decl.Name, "class %q is declared twice in batch", decl.Name)
		}
		if _, exists := r.classes[decl.Name]; exists {
			return newModelError(ErrCodeDuplicateClass, decl.Name, "class %q is already declared", decl.Name)
		}
		byName[decl.Name] = decl
		names = append(names, decl.Name)
	}

	g := newDependencyGraph(names)
	for _, name := range names {
		decl := byName[name]
		for _, b := range decl.Bases {
			if _, inBatch := byName[b.Class]; inBatch {
				g.addEdge(name, b.Class)
			}
		}
		for _, m := range decl.Members {
			if _, inBatch := byName[m.Type]; inBatch {
				g.addEdge(name, m.Type)
			}
		}
	}
	if cycle := g.firstCycle(); cycle != nil {
		return &ModelError{
			Code:    ErrCodeCycle,
			Class:   cycle[0],
			Message: "class transitively inherits from or contains itself",
			Path:    cycle,
		}
	}

	// Declare dependencies first. On failure roll the batch back so a
	// partially registered hierarchy is never observable.
	var declared []string
	for _, name := range g.topoOrder() {
		if _, err := r.declareLocked(byName[name]); err != nil {
			r.rollback(declared)
			return err
		}
		declared = append(declared, name)
	}
	return nil
}

func (r *Registry) rollback(names []string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		delete(r.classes, n)
		drop[n] = true
	}
	kept := r.order[:0]
	for _, n := range r.order {
		if !drop[n] {
			kept = append(kept, n)
		}
	}
	r.order = kept
}
