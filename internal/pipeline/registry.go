package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for stage registration and ordering.
var (
	ErrStageAlreadyRegistered = errors.New("stage already registered")
	ErrStageNotFound          = errors.New("stage not found")
	ErrDependencyCycle        = errors.New("dependency cycle detected")
)

// Registry manages available stages and their dependencies.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string // registration order
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Names must be unique.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}
	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers every stage and panics on error. For static wiring.
func (r *Registry) MustRegister(stages ...Stage) {
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Names returns all stage names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// GetOrdered returns stages sorted by dependencies (Kahn's algorithm).
// Ties keep registration order.
func (r *Registry) GetOrdered() ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inDegree := make(map[string]int, len(r.order))
	for _, name := range r.order {
		for _, dep := range r.stages[name].Dependencies() {
			if _, ok := r.stages[dep]; !ok {
				return nil, fmt.Errorf("%w: stage %q depends on %q", ErrStageNotFound, name, dep)
			}
			inDegree[name]++
		}
	}

	var queue []string
	for _, name := range r.order {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	ordered := make([]Stage, 0, len(r.order))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.stages[name])

		for _, other := range r.order {
			for _, dep := range r.stages[other].Dependencies() {
				if dep == name {
					inDegree[other]--
					if inDegree[other] == 0 {
						queue = append(queue, other)
					}
				}
			}
		}
	}

	if len(ordered) != len(r.stages) {
		return nil, ErrDependencyCycle
	}
	return ordered, nil
}

// Plan returns the named stages in dependency order. With no names it
// returns every stage. Dependencies are not added implicitly; a stage run
// on its own reads whatever State the caller prepared.
func (r *Registry) Plan(names ...string) ([]Stage, error) {
	ordered, err := r.GetOrdered()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return ordered, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.Get(n); !ok {
			return nil, fmt.Errorf("%w: %s", ErrStageNotFound, n)
		}
		want[n] = true
	}
	plan := make([]Stage, 0, len(names))
	for _, s := range ordered {
		if want[s.Name()] {
			plan = append(plan, s)
		}
	}
	return plan, nil
}

// Validate checks that all dependencies exist and form no cycle.
func (r *Registry) Validate() error {
	_, err := r.GetOrdered()
	return err
}
