// Package gateway wires the gateway's device sessions, ingress router,
// egress pump, and roster publisher together around a shared MQTT
// facade, and owns the per-device DeviceKey -> target registry described
// in §9's "cyclic event wiring" design note.
package gateway

import (
	"sync"

	"github.com/twinsync/gateway/pkg/ingress"
	"github.com/twinsync/gateway/pkg/model"
)

// Registry is the explicit, concurrency-safe DeviceKey -> PlanTarget
// lookup the ingress router resolves against. It holds no opinion about
// what a target is beyond the ingress.PlanTarget surface; sessions
// register themselves by reference and never hand the registry ownership
// back.
type Registry struct {
	mu      sync.RWMutex
	targets map[model.DeviceKey]ingress.PlanTarget
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[model.DeviceKey]ingress.PlanTarget)}
}

// Put registers target under key, replacing any existing entry.
func (r *Registry) Put(key model.DeviceKey, target ingress.PlanTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[key] = target
}

// Remove deregisters key.
func (r *Registry) Remove(key model.DeviceKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, key)
}

// Resolve implements ingress.Resolver.
func (r *Registry) Resolve(key model.DeviceKey) (ingress.PlanTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[key]
	return t, ok
}

// Keys returns a snapshot of every registered DeviceKey.
func (r *Registry) Keys() []model.DeviceKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DeviceKey, 0, len(r.targets))
	for k := range r.targets {
		out = append(out, k)
	}
	return out
}
