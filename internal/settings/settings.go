// Package settings defines the key-value settings surface the supervisor reads
// and the known keys with their defaults.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Well-known keys. Per-slot keys are built with ProviderKey and ModelKey.
const (
	KeyExternalAPIKey      = "external_api_key"
	KeyLocalModelDirectory = "local_model_directory"

	providerPrefix = "selected_provider_"
	modelPrefix    = "selected_model_"
)

// Provider values for selected_provider_<slot>.
const (
	ProviderLocal    = "local"
	ProviderExternal = "external"
)

// ProviderKey returns the provider setting key for slot.
func ProviderKey(slot string) string { return providerPrefix + slot }

// ModelKey returns the selected model setting key for slot.
func ModelKey(slot string) string { return modelPrefix + slot }

// Store is a key-value settings store. Missing keys read as "".
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// GetSettings returns the requested keys (all known keys when none given)
	// read together, so a caller sees one consistent snapshot.
	GetSettings(ctx context.Context, keys ...string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

// Defaults returns the default value of every known key for the given slots.
func Defaults(slots []string) map[string]string {
	d := map[string]string{
		KeyExternalAPIKey:      "",
		KeyLocalModelDirectory: "",
	}
	for _, s := range slots {
		d[ProviderKey(s)] = ProviderLocal
		d[ModelKey(s)] = ""
	}
	return d
}

// UnknownKeys returns the keys not present in known, sorted.
func UnknownKeys(known map[string]string, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// UnknownKeyError reports keys outside the known set.
type UnknownKeyError struct{ Keys []string }

func (e UnknownKeyError) Error() string {
	return fmt.Sprintf("setting key(s) not found: %s", strings.Join(e.Keys, ", "))
}

// IsUnknownKey reports whether err is an UnknownKeyError.
func IsUnknownKey(err error) bool {
	_, ok := err.(UnknownKeyError)
	return ok
}

// MemoryStore is an in-process Store. It is used in tests and when no data
// directory is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	defaults map[string]string
	values   map[string]string
}

// NewMemoryStore returns a store seeded with defaults.
func NewMemoryStore(defaults map[string]string) *MemoryStore {
	d := make(map[string]string, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &MemoryStore{defaults: d, values: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return m.defaults[key], nil
}

func (m *MemoryStore) GetSettings(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(keys) == 0 {
		out := make(map[string]string, len(m.defaults)+len(m.values))
		for k, v := range m.defaults {
			out[k] = v
		}
		for k, v := range m.values {
			out[k] = v
		}
		return out, nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
			continue
		}
		out[k] = m.defaults[k]
	}
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}
