/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kms

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
)

// KeySet holds one Ed25519 signing keypair under a stable identifier.
type KeySet struct {
	// ID is a unique identifier for the key set.
	ID string
	// VerKey is the base58-encoded Ed25519 verification key.
	VerKey string
}

type keyEntry struct {
	id   string
	priv ed25519.PrivateKey
}

// Store is an in-memory key store implementing the KeyLookup capability.
// It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	keys map[string]keyEntry // base58 verkey -> entry
}

// NewStore returns an empty in-memory key store.
func NewStore() *Store {
	return &Store{keys: map[string]keyEntry{}}
}

// CreateKeySet generates a new Ed25519 keypair and stores it.
func (s *Store) CreateKeySet() (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("createKeySet: %w", err)
	}

	return s.add(pub, priv), nil
}

// Add imports an existing Ed25519 private key and stores it under a new key set.
func (s *Store) Add(priv ed25519.PrivateKey) (*KeySet, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("add: private key must be %d bytes", ed25519.PrivateKeySize)
	}

	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("add: unexpected public key type")
	}

	return s.add(pub, priv), nil
}

func (s *Store) add(pub ed25519.PublicKey, priv ed25519.PrivateKey) *KeySet {
	verKey := base58.Encode(pub)
	entry := keyEntry{id: uuid.New().String(), priv: priv}

	s.mu.Lock()
	s.keys[verKey] = entry
	s.mu.Unlock()

	return &KeySet{ID: entry.id, VerKey: verKey}
}

// Get returns the private key stored for the given base58 verification key.
func (s *Store) Get(verKey string) (ed25519.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.keys[verKey]
	if !ok {
		return nil, ErrKeyNotFound
	}

	return entry.priv, nil
}

// FindVerKey returns the index of the first candidate verification key held in
// the store, along with its private key. Implements KeyLookup.
func (s *Store) FindVerKey(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, verKey := range candidateKeys {
		if err := ctx.Err(); err != nil {
			return -1, nil, err
		}

		if entry, ok := s.keys[verKey]; ok {
			return i, entry.priv, nil
		}
	}

	return -1, nil, ErrKeyNotFound
}
