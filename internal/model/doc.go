// Package model is the static hierarchy model of ctorder.
//
// A ClassDescriptor describes one class: its bases (ordinary or virtual) and
// data members in declaration order, its constructors, destructor and
// virtual methods. Descriptors are built once by a Registry and are
// immutable afterwards, so any number of object lifecycles may read them
// concurrently.
//
// Declaration order is the only input to lifecycle sequencing. Constructor
// initializer lists supply arguments, never order.
//
// Behavior is attached through callbacks that receive a Context: bodies
// (constructor, destructor, method) and initializers (which yield the
// constructor and argument for one sub-object). FromSpec builds those
// callbacks from the declarative action lists of an ir.ClassSpec.
package model
