/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kms defines the key lookup capability consumed by the envelope
// unpacker, along with an in-memory implementation suitable for tests and
// small agents. Implementations may consult any kind of key store; the
// unpacker only depends on the KeyLookup contract.
package kms

import (
	"context"
	"crypto/ed25519"
	"errors"
)

// ErrKeyNotFound is returned by a KeyLookup when none of the candidate keys
// has a locally held private key.
var ErrKeyNotFound = errors.New("no matching key found")

// KeyLookup resolves which of a set of candidate verification keys is held locally.
//
// FindVerKey returns the index of a candidate for which a private key is held,
// along with that private key. Candidate keys are base58-encoded Ed25519
// verification keys, in the order they appear in the envelope; the slice must
// not be mutated. Lookups may perform I/O (a wallet query, a remote key store),
// hence the context.
type KeyLookup interface {
	FindVerKey(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error)
}

// LookupFunc adapts a function to the KeyLookup interface.
type LookupFunc func(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error)

// FindVerKey calls f.
func (f LookupFunc) FindVerKey(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error) {
	return f(ctx, candidateKeys)
}
