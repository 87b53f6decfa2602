package connector

import (
	"slices"
	"sync"

	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/dberr"
)

// Registry maps pool names to pools. It is safe for concurrent use.
type Registry struct {
	pools map[string]database.Pool
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]database.Pool)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by RegisterPool and
// GetPool.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register stores pool under name, replacing any pool already registered
// under it.
func (r *Registry) Register(name string, pool database.Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[name] = pool
}

// Unregister removes name and returns the pool that was registered, if any.
func (r *Registry) Unregister(name string) (database.Pool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[name]
	delete(r.pools, name)
	return pool, ok
}

// Pool looks up name. A missing name yields a *dberr.ConfigurationError.
func (r *Registry) Pool(name string) (database.Pool, error) {
	r.mu.RLock()
	pool, ok := r.pools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, dberr.PoolNotFound(name)
	}
	return pool, nil
}

// Names returns the registered pool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// RegisterPool registers pool on the default registry.
func RegisterPool(name string, pool database.Pool) {
	defaultRegistry.Register(name, pool)
}

// GetPool looks up name on the default registry.
func GetPool(name string) (database.Pool, error) {
	return defaultRegistry.Pool(name)
}
