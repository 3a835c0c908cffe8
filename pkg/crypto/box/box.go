/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package box provides the libsodium-compatible box primitives used by the
// legacy envelope format: authenticated boxes with an explicit nonce
// (Easy/EasyOpen) and anonymous sealed boxes (Seal/SealOpen).
//
// Payloads are encrypted using symmetric encryption (XSalsa20Poly1305)
// using a shared key derived from a shared secret created by
//
//	Curve25519 Elliptic Curve Diffie-Hellman key exchange.
//
// All keys are raw 32-byte Curve25519 keys; callers are responsible for
// converting Ed25519 keys beforehand.
package box

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"

	"github.com/didcomm-go/envelope/pkg/internal/cryptoutil"
)

// Easy seals a payload with a provided nonce, using the sender's private key
// and the recipient's public key.
func Easy(payload, nonce, theirPub, myPriv []byte) ([]byte, error) {
	recPub, priv, err := toKeyPair(theirPub, myPriv)
	if err != nil {
		return nil, fmt.Errorf("easy: %w", err)
	}

	var nonceBytes [cryptoutil.NonceSize]byte

	if len(nonce) != cryptoutil.NonceSize {
		return nil, errors.New("easy: invalid nonce size")
	}

	copy(nonceBytes[:], nonce)

	return box.Seal(nil, payload, &nonceBytes, recPub, priv), nil
}

// EasyOpen unseals a message sealed with Easy, where the nonce is provided.
func EasyOpen(cipherText, nonce, theirPub, myPriv []byte) ([]byte, error) {
	sendPub, priv, err := toKeyPair(theirPub, myPriv)
	if err != nil {
		return nil, fmt.Errorf("easyOpen: %w", err)
	}

	var nonceBytes [cryptoutil.NonceSize]byte

	if len(nonce) != cryptoutil.NonceSize {
		return nil, errors.New("easyOpen: invalid nonce size")
	}

	copy(nonceBytes[:], nonce)

	out, success := box.Open(nil, cipherText, &nonceBytes, sendPub, priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

// Seal seals a payload using the equivalent of libsodium box_seal
//
// Generates an ephemeral keypair to use for the sender, and includes
// the ephemeral sender public key in the message.
func Seal(payload, theirPub []byte, randSource io.Reader) ([]byte, error) {
	// generate ephemeral curve25519 asymmetric keys
	epk, esk, err := box.GenerateKey(randSource)
	if err != nil {
		return nil, err
	}

	var recPub [cryptoutil.Curve25519KeySize]byte

	if len(theirPub) != cryptoutil.Curve25519KeySize {
		return nil, errors.New("seal: invalid recipient key size")
	}

	copy(recPub[:], theirPub)

	// generate an equivalent nonce to libsodium's
	nonce, err := cryptoutil.Nonce(epk[:], theirPub)
	if err != nil {
		return nil, err
	}

	// seal the msg with the ephemeral key, nonce and the recipient's public key
	return box.Seal(epk[:], payload, nonce, &recPub, esk), nil
}

// SealOpen decrypts a payload encrypted with Seal
//
// Reads the ephemeral sender public key, prepended to a properly-formatted message,
// and uses that along with the recipient keypair to decrypt the message.
func SealOpen(cipherText, myPub, myPriv []byte) ([]byte, error) {
	if len(cipherText) < cryptoutil.Curve25519KeySize {
		return nil, errors.New("message too short")
	}

	var epk [cryptoutil.Curve25519KeySize]byte

	copy(epk[:], cipherText[:cryptoutil.Curve25519KeySize])

	_, priv, err := toKeyPair(myPub, myPriv)
	if err != nil {
		return nil, fmt.Errorf("sealOpen: %w", err)
	}

	nonce, err := cryptoutil.Nonce(epk[:], myPub)
	if err != nil {
		return nil, err
	}

	out, success := box.Open(nil, cipherText[cryptoutil.Curve25519KeySize:], nonce, &epk, priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

func toKeyPair(pub, priv []byte) (*[cryptoutil.Curve25519KeySize]byte, *[cryptoutil.Curve25519KeySize]byte, error) {
	if len(pub) != cryptoutil.Curve25519KeySize || len(priv) != cryptoutil.Curve25519KeySize {
		return nil, nil, errors.New("invalid curve25519 key size")
	}

	var (
		pubBytes  [cryptoutil.Curve25519KeySize]byte
		privBytes [cryptoutil.Curve25519KeySize]byte
	)

	copy(pubBytes[:], pub)
	copy(privBytes[:], priv)

	return &pubBytes, &privBytes, nil
}
