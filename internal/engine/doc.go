// Package engine runs object lifetimes over a class hierarchy.
//
// Construct executes a class's plan against a fresh Instance. Every layer
// (the most-derived class, and each base sub-object in turn) is pushed on
// the instance's active-layer stack while its steps and body run and is
// popped afterwards:
//
//	push L
//	  for each step of L's plan:
//	    mark in_progress, evaluate the initializer in L's frame,
//	    build the sub-object, mark completed
//	  run L's constructor body
//	pop L
//
// Virtual calls consult the top of that stack, so a base layer's body
// never reaches an override of a class that is not yet (or no longer)
// constructed.
//
// When a step or body fails, the layer tears down the steps it completed,
// in reverse, and returns the same *LifecycleFailure to the enclosing
// layer, which does the same. Destroy runs the reverse: each layer's
// destructor body, then its own sub-objects in reverse plan order.
//
// Every state change is reported to Observers as an ir.Event stamped by a
// logical Clock. An Instance is not safe for concurrent use; an Engine is.
package engine
