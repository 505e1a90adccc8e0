package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoCredential    = errors.New("no usable credential")
	ErrSecretTooShort  = errors.New("credential secret too short")
	ErrUnknownProvider = errors.New("credential matches no known provider prefix")
)

// minSecretLen rejects obviously truncated secrets before any network call.
const minSecretLen = 20

// SlotSource records where a credential came from. The environment slot
// always precedes persisted slots in the failover order.
type SlotSource int

const (
	SourceEnvironment SlotSource = iota
	SourceStore
)

func (s SlotSource) String() string {
	if s == SourceEnvironment {
		return "env"
	}
	return "store"
}

// Slot is one entry in the ordered credential pool.
type Slot struct {
	Index    int
	Secret   string
	Source   SlotSource
	Provider string
}

// providerPrefixes maps a secret's fixed literal prefix to its provider tag.
var providerPrefixes = map[string]string{
	"sk-ant-": "anthropic",
}

// InferProvider validates a candidate secret and returns its provider tag.
// Validation is purely lexical: length, then prefix match.
func InferProvider(secret string) (string, error) {
	if len(secret) < minSecretLen {
		return "", ErrSecretTooShort
	}
	for prefix, provider := range providerPrefixes {
		if strings.HasPrefix(secret, prefix) {
			return provider, nil
		}
	}
	return "", ErrUnknownProvider
}

// StoredSecret is one persisted credential row, already decrypted.
type StoredSecret struct {
	Index  int
	Secret string
}

// SecretStore exposes the persisted credential slots.
type SecretStore interface {
	Secrets(ctx context.Context) ([]StoredSecret, error)
}

// Pool assembles the ordered credential pool: the environment secret first,
// then persisted slots in ascending index order. Candidates that fail
// provider inference are dropped at snapshot time, before any request.
type Pool struct {
	mu        sync.RWMutex
	envSecret string
	store     SecretStore
	logger    *zap.Logger
}

// NewPool creates a pool. envSecret and store may each be empty/nil.
func NewPool(envSecret string, store SecretStore, logger *zap.Logger) *Pool {
	return &Pool{envSecret: envSecret, store: store, logger: logger}
}

// SetEnvSecret replaces the environment credential.
func (p *Pool) SetEnvSecret(secret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envSecret = secret
}

// Snapshot returns a consistent ordered view of the pool. Each
// classification attempt takes one snapshot up front so slots added or
// removed mid-request cannot reorder the failover sequence under it.
func (p *Pool) Snapshot(ctx context.Context) ([]Slot, error) {
	p.mu.RLock()
	envSecret := p.envSecret
	store := p.store
	p.mu.RUnlock()

	var slots []Slot

	if envSecret != "" {
		if provider, err := InferProvider(envSecret); err != nil {
			p.logger.Warn("environment credential rejected", zap.Error(err))
		} else {
			slots = append(slots, Slot{
				Index:    0,
				Secret:   envSecret,
				Source:   SourceEnvironment,
				Provider: provider,
			})
		}
	}

	if store != nil {
		stored, err := store.Secrets(ctx)
		if err != nil {
			// A broken store shrinks the pool, it doesn't empty it.
			p.logger.Warn("credential store unavailable", zap.Error(err))
		} else {
			sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
			for _, s := range stored {
				provider, err := InferProvider(s.Secret)
				if err != nil {
					p.logger.Warn("stored credential rejected",
						zap.Int("slot_index", s.Index),
						zap.Error(err),
					)
					continue
				}
				slots = append(slots, Slot{
					Index:    s.Index,
					Secret:   s.Secret,
					Source:   SourceStore,
					Provider: provider,
				})
			}
		}
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("Pool.Snapshot: %w", ErrNoCredential)
	}
	return slots, nil
}
