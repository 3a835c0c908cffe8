/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"
	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/didcomm-go/envelope/pkg/crypto/box"
	"github.com/didcomm-go/envelope/pkg/internal/cryptoutil"
	"github.com/didcomm-go/envelope/pkg/kms"
)

func TestUnpackRoundTrip(t *testing.T) {
	t.Run("anoncrypt", func(t *testing.T) {
		recPub, recPriv := randKeyPair(t)
		msg := []byte("hello there")

		packer := New()

		packed, err := packer.Pack(msg, []ed25519.PublicKey{recPub}, nil)
		require.NoError(t, err)

		unpacked, err := packer.Unpack(context.Background(), packed, storeFor(t, recPriv))
		require.NoError(t, err)
		require.Equal(t, msg, unpacked.Message)
		require.Equal(t, []byte(recPub), unpacked.ToVerKey)
		require.Nil(t, unpacked.FromVerKey)
	})

	t.Run("authcrypt", func(t *testing.T) {
		recPub, recPriv := randKeyPair(t)
		sendPub, sendPriv := randKeyPair(t)
		msg := []byte("hello there")

		packer := New()

		packed, err := packer.Pack(msg, []ed25519.PublicKey{recPub}, sendPriv)
		require.NoError(t, err)

		unpacked, err := packer.Unpack(context.Background(), packed, storeFor(t, recPriv))
		require.NoError(t, err)
		require.Equal(t, msg, unpacked.Message)
		require.Equal(t, []byte(recPub), unpacked.ToVerKey)
		require.Equal(t, []byte(sendPub), unpacked.FromVerKey)
	})

	t.Run("empty message", func(t *testing.T) {
		recPub, recPriv := randKeyPair(t)

		packer := New()

		packed, err := packer.Pack(nil, []ed25519.PublicKey{recPub}, nil)
		require.NoError(t, err)

		unpacked, err := packer.Unpack(context.Background(), packed, storeFor(t, recPriv))
		require.NoError(t, err)
		require.Empty(t, unpacked.Message)
	})

	t.Run("multiple recipients, each opens with its own key", func(t *testing.T) {
		recPubA, recPrivA := randKeyPair(t)
		recPubB, recPrivB := randKeyPair(t)
		_, sendPriv := randKeyPair(t)
		msg := []byte("Pack my box with five dozen liquor jugs!")

		packer := New()

		packed, err := packer.Pack(msg, []ed25519.PublicKey{recPubA, recPubB}, sendPriv)
		require.NoError(t, err)

		unpackedA, err := packer.Unpack(context.Background(), packed, storeFor(t, recPrivA))
		require.NoError(t, err)
		require.Equal(t, msg, unpackedA.Message)
		require.Equal(t, []byte(recPubA), unpackedA.ToVerKey)

		unpackedB, err := packer.Unpack(context.Background(), packed, storeFor(t, recPrivB))
		require.NoError(t, err)
		require.Equal(t, msg, unpackedB.Message)
		require.Equal(t, []byte(recPubB), unpackedB.ToVerKey)
	})
}

func TestUnpackNoMatchingKey(t *testing.T) {
	recPub, _ := randKeyPair(t)
	_, otherPriv := randKeyPair(t)

	packer := New()

	packed, err := packer.Pack([]byte("hello there"), []ed25519.PublicKey{recPub}, nil)
	require.NoError(t, err)

	t.Run("lookup miss", func(t *testing.T) {
		unpacked, err := packer.Unpack(context.Background(), packed, storeFor(t, otherPriv))
		require.ErrorIs(t, err, ErrCannotDecrypt)
		require.Nil(t, unpacked)
	})

	t.Run("lying lookup yields the same error as a miss", func(t *testing.T) {
		// a lookup that claims to hold the recipient key but returns the
		// wrong one must fail identically to a plain miss
		liar := kms.LookupFunc(func(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error) {
			return 0, otherPriv, nil
		})

		_, missErr := packer.Unpack(context.Background(), packed, storeFor(t, otherPriv))
		_, lieErr := packer.Unpack(context.Background(), packed, liar)

		require.ErrorIs(t, lieErr, ErrCannotDecrypt)
		require.Equal(t, missErr.Error(), lieErr.Error())
	})

	t.Run("lookup index out of range", func(t *testing.T) {
		badLookup := kms.LookupFunc(func(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error) {
			return 5, otherPriv, nil
		})

		_, err := packer.Unpack(context.Background(), packed, badLookup)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("lookup returns truncated key", func(t *testing.T) {
		badLookup := kms.LookupFunc(func(ctx context.Context, candidateKeys []string) (int, ed25519.PrivateKey, error) {
			return 0, otherPriv[:7], nil
		})

		_, err := packer.Unpack(context.Background(), packed, badLookup)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := packer.Unpack(ctx, packed, storeFor(t, otherPriv))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestUnpackMalformedEnvelope(t *testing.T) {
	recPub, recPriv := randKeyPair(t)
	store := storeFor(t, recPriv)

	packer := New()

	packed, err := packer.Pack([]byte("hello there"), []ed25519.PublicKey{recPub}, nil)
	require.NoError(t, err)

	t.Run("not JSON", func(t *testing.T) {
		_, err := packer.Unpack(context.Background(), []byte("not an envelope"), store)
		require.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := packer.Unpack(context.Background(), []byte(`{"protected":"eyJ9"}`), store)
		require.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("wrong nonce size", func(t *testing.T) {
		mutated := mutateEnvelope(t, packed, func(env *envelope) {
			env.IV = encodeB64([]byte("short nonce"))
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedEnvelope)
	})
}

func TestUnpackMalformedHeader(t *testing.T) {
	recPub, recPriv := randKeyPair(t)
	_, sendPriv := randKeyPair(t)
	store := storeFor(t, recPriv)

	packer := New()

	anonPacked, err := packer.Pack([]byte("hello there"), []ed25519.PublicKey{recPub}, nil)
	require.NoError(t, err)

	authPacked, err := packer.Pack([]byte("hello there"), []ed25519.PublicKey{recPub}, sendPriv)
	require.NoError(t, err)

	t.Run("protected is not base64", func(t *testing.T) {
		mutated := mutateEnvelope(t, anonPacked, func(env *envelope) {
			env.Protected = "!!! not base64 !!!"
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("unsupported typ", func(t *testing.T) {
		mutated := mutateProtected(t, anonPacked, func(p *protected) {
			p.Typ = "JWM/2.0"
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("unsupported enc", func(t *testing.T) {
		mutated := mutateProtected(t, anonPacked, func(p *protected) {
			p.Enc = "chacha20poly1305_ietf"
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("unsupported alg", func(t *testing.T) {
		mutated := mutateProtected(t, anonPacked, func(p *protected) {
			p.Alg = "Plaintext"
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("no recipients", func(t *testing.T) {
		mutated := mutateProtected(t, anonPacked, func(p *protected) {
			p.Recipients = nil
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("kid is not a verkey", func(t *testing.T) {
		mutated := mutateProtected(t, anonPacked, func(p *protected) {
			p.Recipients[0].Header.KID = "tooshort"
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("sender without iv", func(t *testing.T) {
		mutated := mutateProtected(t, authPacked, func(p *protected) {
			p.Recipients[0].Header.IV = ""
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("iv without sender", func(t *testing.T) {
		mutated := mutateProtected(t, authPacked, func(p *protected) {
			p.Recipients[0].Header.Sender = ""
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("alg contradicts recipient entry", func(t *testing.T) {
		mutated := mutateProtected(t, authPacked, func(p *protected) {
			p.Alg = algAnoncrypt
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrMalformedHeader)
	})
}

func TestUnpackTamperDetection(t *testing.T) {
	recPub, recPriv := randKeyPair(t)
	_, sendPriv := randKeyPair(t)
	store := storeFor(t, recPriv)

	packer := New()

	packed, err := packer.Pack([]byte("hello there"), []ed25519.PublicKey{recPub}, sendPriv)
	require.NoError(t, err)

	t.Run("flipped bit in ciphertext", func(t *testing.T) {
		mutated := mutateEnvelope(t, packed, func(env *envelope) {
			env.CipherText = flipBit(t, env.CipherText)
		})

		unpacked, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrCannotDecrypt)
		require.Nil(t, unpacked)
	})

	t.Run("flipped bit in tag", func(t *testing.T) {
		mutated := mutateEnvelope(t, packed, func(env *envelope) {
			env.Tag = flipBit(t, env.Tag)
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrCannotDecrypt)
	})

	t.Run("reordered recipient list breaks header binding", func(t *testing.T) {
		// the protected string is the AEAD associated data: rewriting it in
		// any way, even without touching this recipient's entry, must be
		// rejected as tampering
		recPub2, _ := randKeyPair(t)

		twoRec, err := packer.Pack([]byte("hello there"), []ed25519.PublicKey{recPub, recPub2}, sendPriv)
		require.NoError(t, err)

		mutated := mutateProtected(t, twoRec, func(p *protected) {
			p.Recipients[0], p.Recipients[1] = p.Recipients[1], p.Recipients[0]
		})

		_, err = packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrCannotDecrypt)
	})

	t.Run("re-encoded protected string breaks header binding", func(t *testing.T) {
		// padding the protected string decodes to the same header but is a
		// different AAD byte string
		mutated := mutateEnvelope(t, packed, func(env *envelope) {
			raw, err := decodeB64(env.Protected)
			require.NoError(t, err)

			env.Protected = base64.URLEncoding.EncodeToString(raw)
		})

		_, err := packer.Unpack(context.Background(), mutated, store)
		require.ErrorIs(t, err, ErrCannotDecrypt)
	})
}

// TestUnpackPaddedInterop verifies that envelopes from implementations that
// emit padded base64url (as some older agents do) still open, as long as the
// AAD is their own padded protected string.
func TestUnpackPaddedInterop(t *testing.T) {
	recPub, recPriv := randKeyPair(t)
	msg := []byte("hello there")

	recCurvePub, err := cryptoutil.PublicEd25519toCurve25519(recPub)
	require.NoError(t, err)

	cek := make([]byte, chacha.KeySize)
	_, err = rand.Read(cek)
	require.NoError(t, err)

	encCEK, err := box.Seal(cek, recCurvePub, rand.Reader)
	require.NoError(t, err)

	protectedBytes, err := json.Marshal(protected{
		Enc: ContentEncryption,
		Typ: EncodingType,
		Alg: algAnoncrypt,
		Recipients: []recipient{{
			EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
			Header:       recipientHeader{KID: base58.Encode(recPub)},
		}},
	})
	require.NoError(t, err)

	protectedB64 := base64.URLEncoding.EncodeToString(protectedBytes)

	chachaCipher, err := chacha.NewX(cek)
	require.NoError(t, err)

	nonce := make([]byte, chacha.NonceSizeX)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	symPld := chachaCipher.Seal(nil, nonce, msg, []byte(protectedB64))
	tagOffset := len(symPld) - chachaCipher.Overhead()

	envData, err := json.Marshal(envelope{
		Protected:  protectedB64,
		IV:         base64.URLEncoding.EncodeToString(nonce),
		CipherText: base64.URLEncoding.EncodeToString(symPld[:tagOffset]),
		Tag:        base64.URLEncoding.EncodeToString(symPld[tagOffset:]),
	})
	require.NoError(t, err)

	unpacked, err := New().Unpack(context.Background(), envData, storeFor(t, recPriv))
	require.NoError(t, err)
	require.Equal(t, msg, unpacked.Message)
}

// mutateEnvelope re-marshals packed after applying mutate to the outer envelope.
func mutateEnvelope(t *testing.T, packed []byte, mutate func(env *envelope)) []byte {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(packed, &env))

	mutate(&env)

	out, err := json.Marshal(env)
	require.NoError(t, err)

	return out
}

// mutateProtected decodes the protected header, applies mutate, and rebuilds
// the envelope around the re-encoded header.
func mutateProtected(t *testing.T, packed []byte, mutate func(p *protected)) []byte {
	t.Helper()

	return mutateEnvelope(t, packed, func(env *envelope) {
		protectedBytes, err := decodeB64(env.Protected)
		require.NoError(t, err)

		var protectedData protected
		require.NoError(t, json.Unmarshal(protectedBytes, &protectedData))

		mutate(&protectedData)

		protectedBytes, err = json.Marshal(protectedData)
		require.NoError(t, err)

		env.Protected = encodeB64(protectedBytes)
	})
}

// flipBit flips the low bit of the first decoded byte of a base64url field.
func flipBit(t *testing.T, field string) string {
	t.Helper()

	raw, err := decodeB64(field)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	raw[0] ^= 1

	return encodeB64(raw)
}
