// Package hook implements the named extension points plugins attach to.
// Each point declares a mutability class and an invocation cardinality;
// implementations register at a priority tier and run in a deterministic
// order: first tier, then normal, then last, registration order within a
// tier.
package hook

import (
	"fmt"
	"sort"

	"github.com/lgrenard/melo/internal/library"
)

// Mutability classifies what an implementation may do with the items it
// receives.
type Mutability int

const (
	// Edit implementations may alter item state in place before the
	// durable write.
	Edit Mutability = iota
	// Process implementations observe only; any mutation they perform is
	// not persisted and must not be relied upon.
	Process
)

func (m Mutability) String() string {
	if m == Edit {
		return "edit"
	}
	return "process"
}

// Priority orders implementations within a hook point.
type Priority int

const (
	First Priority = iota
	Normal
	Last
)

// Func is a hook implementation. It receives the whole batch for its phase
// and may return an error to abort the operation (before the durable write)
// or to signal a post-commit reaction failure.
type Func func(items []library.Item) error

type point struct {
	name       string
	mutability Mutability
	single     bool
}

type impl struct {
	priority Priority
	seq      int
	fn       Func
}

// Registry holds the declared hook points and their registered
// implementations.
type Registry struct {
	points map[string]point
	impls  map[string][]impl
	seq    int
}

func NewRegistry() *Registry {
	return &Registry{
		points: make(map[string]point),
		impls:  make(map[string][]impl),
	}
}

// Declare adds a named hook point. single restricts the point to at most one
// implementation. Redeclaring a name panics; point names are program
// constants.
func (r *Registry) Declare(name string, m Mutability, single bool) {
	if _, ok := r.points[name]; ok {
		panic(fmt.Sprintf("hook: point %q declared twice", name))
	}
	r.points[name] = point{name: name, mutability: m, single: single}
}

// Register attaches fn to the named point at the given priority tier.
func (r *Registry) Register(name string, priority Priority, fn Func) error {
	p, ok := r.points[name]
	if !ok {
		return fmt.Errorf("hook: unknown point %q", name)
	}
	if p.single && len(r.impls[name]) > 0 {
		return fmt.Errorf("hook: point %q accepts a single implementation", name)
	}
	r.seq++
	r.impls[name] = append(r.impls[name], impl{priority: priority, seq: r.seq, fn: fn})
	return nil
}

// mutability returns the declared mutability class of a point.
func (r *Registry) mutability(name string) (Mutability, bool) {
	p, ok := r.points[name]
	return p.mutability, ok
}

// Invoke runs every implementation of the named point over items, in
// priority-then-registration order. The first error stops the chain.
// A point with no implementations is a no-op.
func (r *Registry) Invoke(name string, items []library.Item) error {
	if _, ok := r.points[name]; !ok {
		return fmt.Errorf("hook: unknown point %q", name)
	}
	impls := make([]impl, len(r.impls[name]))
	copy(impls, r.impls[name])
	sort.SliceStable(impls, func(i, j int) bool {
		if impls[i].priority != impls[j].priority {
			return impls[i].priority < impls[j].priority
		}
		return impls[i].seq < impls[j].seq
	})

	for _, im := range impls {
		if err := im.fn(items); err != nil {
			return fmt.Errorf("hook %s: %w", name, err)
		}
	}
	return nil
}
