package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/databases"
	"github.com/linesmerrill/creator-discovery-api/models"
)

// RegistryConfig holds what every pipeline in a registry shares
type RegistryConfig struct {
	DB    databases.CreatorDatabase
	Store KeyValueStore
	// Options are applied to every pipeline the registry creates
	Options []Option
	// OnChange receives every snapshot published by any pipeline
	OnChange func(owner string, snap models.Snapshot)
}

type registryEntry struct {
	pipeline *Pipeline
	lastSeen time.Time
}

// Registry keeps one pipeline per owner, created on first use with the owner's
// persisted state
type Registry struct {
	cfg RegistryConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry returns an empty registry
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns owner's pipeline, creating and loading it if needed
func (r *Registry) Get(ctx context.Context, owner string) *Pipeline {
	r.mu.Lock()
	e, ok := r.entries[owner]
	if !ok {
		e = &registryEntry{pipeline: r.newPipeline(owner)}
		r.entries[owner] = e
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	e.pipeline.Load(ctx)
	return e.pipeline
}

func (r *Registry) newPipeline(owner string) *Pipeline {
	opts := make([]Option, 0, len(r.cfg.Options)+2)
	opts = append(opts, r.cfg.Options...)
	opts = append(opts, WithOwner(owner))
	if r.cfg.OnChange != nil {
		onChange := r.cfg.OnChange
		opts = append(opts, WithOnChange(func(snap models.Snapshot) { onChange(owner, snap) }))
	}
	return New(r.cfg.DB, NewKVStateRepository(r.cfg.Store, owner), opts...)
}

// EvictIdle drops pipelines not used for longer than maxIdle and returns how many
// were dropped. Their persisted state stays in the store.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	evicted := 0
	for owner, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, owner)
			evicted++
		}
	}
	if evicted > 0 {
		zap.S().Infow("evicted idle creator pipelines", "count", evicted, "remaining", len(r.entries))
	}
	return evicted
}

// Len is the number of live pipelines
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
