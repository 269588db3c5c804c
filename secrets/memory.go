package secrets

import (
	"sync"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

// Memory keeps credentials in process. Entries do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]model.Credentials
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]model.Credentials{}}
}

func (m *Memory) Put(subscriptionID string, creds model.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[subscriptionID] = creds
	return nil
}

func (m *Memory) Get(subscriptionID string) (model.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds, ok := m.entries[subscriptionID]
	if !ok {
		return model.Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (m *Memory) Delete(subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, subscriptionID)
	return nil
}
