package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Worker runs one job class.
type Worker interface {
	Handle(ctx context.Context, payload json.RawMessage) error
}

// ExhaustedHandler is implemented by workers that must act once retries run
// out, typically to fail the transaction and notify the user.
type ExhaustedHandler interface {
	Exhausted(ctx context.Context, payload json.RawMessage, cause error) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, payload json.RawMessage) error

func (f WorkerFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

type registration struct {
	class  string
	worker Worker
	policy Policy
}

// Registry maps class names to workers and their retry policies.
type Registry struct {
	entries map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// Register adds a worker for class. Registering a class twice is an error.
func (r *Registry) Register(class string, w Worker, policy Policy) error {
	if class == "" || w == nil {
		return fmt.Errorf("register worker: class and worker are required")
	}
	if _, dup := r.entries[class]; dup {
		return fmt.Errorf("register worker: %s already registered", class)
	}
	r.entries[class] = registration{class: class, worker: w, policy: policy}
	return nil
}

func (r *Registry) lookup(class string) (registration, bool) {
	reg, ok := r.entries[class]
	return reg, ok
}

// Policy returns the policy registered for class.
func (r *Registry) Policy(class string) (Policy, bool) {
	reg, ok := r.entries[class]
	return reg.policy, ok
}

// Classes lists registered class names in sorted order.
func (r *Registry) Classes() []string {
	out := make([]string, 0, len(r.entries))
	for c := range r.entries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
