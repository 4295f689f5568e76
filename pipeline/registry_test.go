package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/creator-discovery-api/models"
)

func TestRegistryReusesPipelinePerOwner(t *testing.T) {
	store := newMemCreatorStore(creatorDocs(5)...)
	r := NewRegistry(RegistryConfig{
		DB:      store,
		Store:   NewMemoryStore(),
		Options: []Option{WithScoring(NewRandomScoring(rand.New(rand.NewSource(3))))},
	})
	ctx := context.Background()

	a := r.Get(ctx, "alice")
	again := r.Get(ctx, "alice")
	b := r.Get(ctx, "bob")

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, store.findCalls())
	assert.Len(t, a.Snapshot().Creators, 5)
}

func TestRegistryLoadsOwnerState(t *testing.T) {
	kv := NewMemoryStore()
	ctx := context.Background()
	saved := models.PipelineState{Mode: models.ModeAll, Page: 1, Sort: models.DefaultSortState()}
	require.NoError(t, NewKVStateRepository(kv, "alice").Save(ctx, saved))

	r := NewRegistry(RegistryConfig{DB: newMemCreatorStore(creatorDocs(2)...), Store: kv})

	assert.Equal(t, models.ModeAll, r.Get(ctx, "alice").State().Mode)
	assert.Equal(t, models.ModeAI, r.Get(ctx, "bob").State().Mode)
}

func TestRegistryEvictIdle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(RegistryConfig{DB: newMemCreatorStore(), Store: NewMemoryStore()})
	r.now = func() time.Time { return now }
	ctx := context.Background()

	r.Get(ctx, "alice")
	now = now.Add(20 * time.Minute)
	r.Get(ctx, "bob")
	now = now.Add(20 * time.Minute)

	assert.Equal(t, 1, r.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.EvictIdle(30*time.Minute))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, r.EvictIdle(30*time.Minute))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryOnChangeCarriesOwner(t *testing.T) {
	var mu sync.Mutex
	owners := map[string]int{}
	r := NewRegistry(RegistryConfig{
		DB:    newMemCreatorStore(creatorDocs(1)...),
		Store: NewMemoryStore(),
		OnChange: func(owner string, _ models.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			owners[owner]++
		},
	})

	r.Get(context.Background(), "alice")
	r.Get(context.Background(), "bob")

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, owners["alice"])
	assert.Positive(t, owners["bob"])
	assert.Len(t, owners, 2)
}
