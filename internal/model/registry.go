package model

import (
	"sync"
)

// Registry stores model instances and the order they were assigned to the detector.
type Registry struct {
	models   map[string]*ModelInstance
	assigned []string
	mu       sync.RWMutex
}

// NewRegistry creates a new model registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*ModelInstance),
	}
}

// Set adds a model instance to the registry.
func (r *Registry) Set(instance *ModelInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[instance.ID] = instance
}

// SetAssigned records the detector's model preference order.
func (r *Registry) SetAssigned(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assigned = append([]string(nil), ids...)
}

// Get returns the model instance with the given ID.
func (r *Registry) Get(id string) (*ModelInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.models[id]
	return instance, ok
}

// List returns all model instances in assignment order.
func (r *Registry) List() []*ModelInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*ModelInstance, 0, len(r.models))
	seen := make(map[string]bool, len(r.models))
	for _, id := range r.assigned {
		if instance, ok := r.models[id]; ok && !seen[id] {
			instances = append(instances, instance)
			seen[id] = true
		}
	}
	for id, instance := range r.models {
		if !seen[id] {
			instances = append(instances, instance)
		}
	}

	return instances
}

// Primary returns the first assigned model that is loaded.
func (r *Registry) Primary() (*ModelInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.assigned {
		if instance, ok := r.models[id]; ok && instance.Usable() {
			return instance, true
		}
	}
	return nil, false
}

// Delete deletes the model instance with the given ID.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.models, id)
}
