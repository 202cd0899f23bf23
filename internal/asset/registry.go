package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe set of known assets.
type Registry struct {
	mu   sync.RWMutex
	byID map[ID]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[ID]*Asset)}
}

// Register adds a. Registering the same ID twice panics.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	r.byID[a.ID()] = a
}

// Get looks up an asset by ID.
func (r *Registry) Get(id ID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Token looks up an ERC20 by chain and address.
func (r *Registry) Token(chainID uint64, addr common.Address) (*Asset, bool) {
	return r.Get(TokenID(chainID, addr))
}

// TokenOrUnknown returns the registered token or an 18-decimal placeholder
// labelled with the shortened address.
func (r *Registry) TokenOrUnknown(chainID uint64, addr common.Address) *Asset {
	if a, ok := r.Token(chainID, addr); ok {
		return a
	}
	hex := addr.Hex()
	return NewToken(chainID, addr, hex[:6]+"…"+hex[len(hex)-4:], "", 18)
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
