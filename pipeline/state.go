package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/models"
)

const stateKeyPrefix = "creator-pipeline"

// Persisted state keys, one per field
const (
	keyMode    = "mode"
	keyPage    = "page"
	keyFilters = "filters"
	keySort    = "sort"
)

// KeyValueStore is a string key/value store. Get reports a missing key with ok=false
// and a nil error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// StateRepository loads and saves the persisted part of one pipeline
type StateRepository interface {
	Load(ctx context.Context) (models.PipelineState, error)
	Save(ctx context.Context, state models.PipelineState) error
}

// KVStateRepository keeps pipeline state for one owner in a KeyValueStore, one JSON
// value per field under fixed keys
type KVStateRepository struct {
	store KeyValueStore
	owner string
}

// NewKVStateRepository returns the repository for owner's state in store
func NewKVStateRepository(store KeyValueStore, owner string) *KVStateRepository {
	return &KVStateRepository{store: store, owner: owner}
}

// StateKey is the fixed key a field of owner's state is stored under
func StateKey(owner, field string) string {
	return fmt.Sprintf("%s:%s:%s", stateKeyPrefix, owner, field)
}

// Load reads every field on its own. Missing, corrupt or invalid fields take their
// default value. The returned state is always usable; the error reports fields the
// store could not be asked for, whose persisted value is therefore unknown.
func (r *KVStateRepository) Load(ctx context.Context) (models.PipelineState, error) {
	state := models.DefaultPipelineState()
	var errs []error
	read := func(field string, v interface{}) bool {
		ok, err := r.read(ctx, field, v)
		if err != nil {
			errs = append(errs, err)
		}
		return ok
	}

	var mode models.Mode
	if read(keyMode, &mode) {
		if m, err := models.ParseMode(string(mode)); err == nil {
			state.Mode = m
		}
	}
	var page int
	if read(keyPage, &page) && page >= 1 {
		state.Page = page
	}
	var filters models.FilterCriteria
	if read(keyFilters, &filters) {
		state.Filters = filters
	}
	var sortState models.SortState
	if read(keySort, &sortState) && validSort(sortState) {
		state.Sort = sortState
	}
	return state, errors.Join(errs...)
}

func validSort(s models.SortState) bool {
	if s.Direction != models.SortAsc && s.Direction != models.SortDesc {
		return false
	}
	if s.Field == models.SortNone {
		return true
	}
	_, err := models.ParseSortField(string(s.Field))
	return err == nil
}

// read decodes field into v. A missing or corrupt value is not an error; only a
// failed store read is.
func (r *KVStateRepository) read(ctx context.Context, field string, v interface{}) (bool, error) {
	key := StateKey(r.owner, field)
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		zap.S().Warnw("corrupt pipeline state, using default", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Save writes every field. All fields are attempted even when one write fails.
func (r *KVStateRepository) Save(ctx context.Context, state models.PipelineState) error {
	var errs []error
	for field, v := range map[string]interface{}{
		keyMode:    state.Mode,
		keyPage:    state.Page,
		keyFilters: state.Filters,
		keySort:    state.Sort,
	} {
		b, err := json.Marshal(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to encode %s: %w", field, err))
			continue
		}
		if err := r.store.Set(ctx, StateKey(r.owner, field), string(b)); err != nil {
			errs = append(errs, fmt.Errorf("failed to save %s: %w", field, err))
		}
	}
	return errors.Join(errs...)
}

// MemoryStore is an in-process KeyValueStore
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements KeyValueStore
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements KeyValueStore
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
