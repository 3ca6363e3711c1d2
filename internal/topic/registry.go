package topic

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps a message type to its topic Config, type-erased, for call
// sites that must cross the generic boundary at runtime. The outbox worker
// does not use it; it dispatches through its own worker.DispatchTable.
//
// It is an explicit value passed around at wiring time, not a package
// global — one Registry per app.App.
type Registry struct {
	mu      sync.RWMutex
	configs map[reflect.Type]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[reflect.Type]any)}
}

// Register binds cfg to T's reflect.Type. Registering the same type twice
// replaces the previous Config.
func Register[T any](r *Registry, cfg *Config[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[reflect.TypeFor[T]()] = cfg
}

// Lookup returns the Config registered for T, if any.
func Lookup[T any](r *Registry) (*Config[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.configs[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return v.(*Config[T]), true
}

// errNotRegistered reports a lookup miss by type name, for callers that
// want an error rather than an ok-bool.
func errNotRegistered(t reflect.Type) error {
	return fmt.Errorf("topic: no Config registered for type %s", t)
}

// MustLookup is Lookup, panicking on a miss — intended for startup-time
// wiring where an unregistered type is a programming error, not a runtime
// condition to recover from.
func MustLookup[T any](r *Registry) *Config[T] {
	cfg, ok := Lookup[T](r)
	if !ok {
		var zero T
		panic(errNotRegistered(reflect.TypeOf(zero)))
	}
	return cfg
}
