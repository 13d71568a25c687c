package core

import (
	"fmt"
	"sort"
	"sync"
)

type PlatformRegistry struct {
	mu      sync.RWMutex
	clients map[Platform]PlatformClient
}

func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{clients: make(map[Platform]PlatformClient)}
}

func (r *PlatformRegistry) Register(client PlatformClient) error {
	if client == nil {
		return fmt.Errorf("core: platform client is nil")
	}
	platform, err := ParsePlatform(string(client.Platform()))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[platform]; exists {
		return fmt.Errorf("core: platform already registered: %s", platform)
	}
	r.clients[platform] = client
	return nil
}

func (r *PlatformRegistry) Get(platform Platform) (PlatformClient, bool) {
	r.mu.RLock()
	client, ok := r.clients[platform]
	r.mu.RUnlock()
	return client, ok
}

func (r *PlatformRegistry) List() []PlatformClient {
	r.mu.RLock()
	keys := make([]Platform, 0, len(r.clients))
	for platform := range r.clients {
		keys = append(keys, platform)
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	clients := make([]PlatformClient, 0, len(keys))
	r.mu.RLock()
	for _, platform := range keys {
		clients = append(clients, r.clients[platform])
	}
	r.mu.RUnlock()
	return clients
}

var _ Registry = (*PlatformRegistry)(nil)
