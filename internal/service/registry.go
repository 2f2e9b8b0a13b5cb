package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// ErrCollectorBusy is returned when a collector is already running; the HTTP
// layer maps it to 409.
var ErrCollectorBusy = errors.New("collector already running")

// ErrUnknownCollector is returned for a trigger name no collector registered.
var ErrUnknownCollector = errors.New("unknown collector")

// Registry maps collector names to their run functions and deduplicates
// concurrent triggers per collector. The pollers and the /collect endpoint
// both go through it, so every pass lands in the run ledger.
type Registry struct {
	tracer trace.Tracer
	runner *Runner

	mu    sync.Mutex
	funcs map[string]CollectorFunc
	busy  map[string]*sync.Mutex
}

func NewRegistry(tracer trace.Tracer, runner *Runner) *Registry {
	return &Registry{
		tracer: tracer,
		runner: runner,
		funcs:  make(map[string]CollectorFunc),
		busy:   make(map[string]*sync.Mutex),
	}
}

func (r *Registry) Register(name string, fn CollectorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
	r.busy[name] = &sync.Mutex{}
}

// Names returns the registered collector names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Trigger runs the named collector under the run ledger. A trigger while the
// same collector is running returns ErrCollectorBusy; other collectors are
// unaffected.
func (r *Registry) Trigger(ctx context.Context, name string) error {
	ctx, span := r.tracer.Start(ctx, "registry.trigger")
	defer span.End()

	r.mu.Lock()
	fn, ok := r.funcs[name]
	lock := r.busy[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollector, name)
	}

	if !lock.TryLock() {
		return fmt.Errorf("%w: %s", ErrCollectorBusy, name)
	}
	defer lock.Unlock()

	return r.runner.Run(ctx, name, fn)
}
