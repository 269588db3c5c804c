// Package secrets stores producer credentials in the system keyring, one
// entry per producer subscription id under a configured service name.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

// Store is the credential store the producer service writes to.
type Store interface {
	Put(subscriptionID string, creds model.Credentials) error
	Get(subscriptionID string) (model.Credentials, error)
	Delete(subscriptionID string) error
}

// availabilityUser is the keyring user looked up to check the keyring answers.
const availabilityUser = "__availability__"

// ErrNotFound is returned when no credentials exist for a subscription.
var ErrNotFound = errors.New("credentials not found")

// Keyring stores credentials via go-keyring.
type Keyring struct {
	service string
}

// NewKeyring returns a store that keeps entries under service.
func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

// availabilityTimeout bounds the keyring check; a missing D-Bus session can hang.
const availabilityTimeout = 5 * time.Second

// Available reports whether the system keyring can be reached. A lookup that
// finds nothing counts as available.
func (k *Keyring) Available() error {
	done := make(chan error, 1)
	go func() {
		_, err := keyring.Get(k.service, availabilityUser)
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil || errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	case <-time.After(availabilityTimeout):
		return fmt.Errorf("keyring did not answer within %s", availabilityTimeout)
	}
}

// Open returns the credential store selected by cfg.Backend. With "auto" the
// keyring is used when it answers and memory otherwise; the returned error is
// the keyring failure that caused the fallback, for logging.
func Open(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "keyring":
		return NewKeyring(cfg.Service), nil
	}
	k := NewKeyring(cfg.Service)
	if err := k.Available(); err != nil {
		return NewMemory(), fmt.Errorf("system keyring unavailable: %w", err)
	}
	return k, nil
}

// Put stores or replaces credentials for a subscription.
func (k *Keyring) Put(subscriptionID string, creds model.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, subscriptionID, string(data)); err != nil {
		return fmt.Errorf("store credentials for %s: %w", subscriptionID, err)
	}
	return nil
}

// Get returns the credentials for a subscription.
func (k *Keyring) Get(subscriptionID string) (model.Credentials, error) {
	var creds model.Credentials
	data, err := keyring.Get(k.service, subscriptionID)
	if errors.Is(err, keyring.ErrNotFound) {
		return creds, ErrNotFound
	}
	if err != nil {
		return creds, fmt.Errorf("read credentials for %s: %w", subscriptionID, err)
	}
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return creds, fmt.Errorf("decode credentials for %s: %w", subscriptionID, err)
	}
	return creds, nil
}

// Delete revokes the credentials for a subscription. Missing entries are not an error.
func (k *Keyring) Delete(subscriptionID string) error {
	err := keyring.Delete(k.service, subscriptionID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete credentials for %s: %w", subscriptionID, err)
	}
	return nil
}
