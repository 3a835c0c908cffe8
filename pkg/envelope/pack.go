/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/didcomm-go/envelope/pkg/crypto/box"
	"github.com/didcomm-go/envelope/pkg/internal/cryptoutil"
)

// Packer packs and unpacks messages in the legacy envelope format.
//
// A Packer holds no per-message state; one instance may be shared freely
// between goroutines.
type Packer struct {
	randSource io.Reader
}

// New will create a Packer that encrypts messages using the legacy format.
func New() *Packer {
	return &Packer{randSource: rand.Reader}
}

func (p *Packer) setRandSource(source io.Reader) {
	p.randSource = source
}

// Pack encrypts payload for the given recipient verification keys.
//
// If sender is nil the envelope is Anoncrypt: recipients learn nothing about
// who produced it. Otherwise the envelope is Authcrypt and each recipient can
// recover and verify the sender's verification key. The mode is global to the
// envelope, never per recipient.
func (p *Packer) Pack(payload []byte, recipients []ed25519.PublicKey, sender ed25519.PrivateKey) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no message recipients", ErrInvalidInput)
	}

	if sender != nil && len(sender) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: sender key must be %d bytes", ErrInvalidInput, ed25519.PrivateKeySize)
	}

	// content encryption key, freshly generated per envelope
	cek := make([]byte, chacha.KeySize)
	if _, err := p.randSource.Read(cek); err != nil {
		return nil, fmt.Errorf("pack: failed to generate CEK: %w", err)
	}

	var (
		encRecipients []recipient
		alg           string
		err           error
	)

	if sender != nil {
		encRecipients, err = p.buildAuthRecipients(cek, recipients, sender)
		alg = algAuthcrypt
	} else {
		encRecipients, err = p.buildAnonRecipients(cek, recipients)
		alg = algAnoncrypt
	}

	if err != nil {
		return nil, err
	}

	protectedB64, err := encodeProtected(alg, encRecipients)
	if err != nil {
		return nil, err
	}

	return p.encryptPayload(cek, payload, protectedB64)
}

func (p *Packer) buildAnonRecipients(cek []byte, recipients []ed25519.PublicKey) ([]recipient, error) {
	encRecipients := make([]recipient, 0, len(recipients))

	for _, recKey := range recipients {
		recCurvePub, err := recipientCurveKey(recKey)
		if err != nil {
			return nil, err
		}

		encCEK, err := box.Seal(cek, recCurvePub, p.randSource)
		if err != nil {
			return nil, fmt.Errorf("pack: failed to seal CEK: %w", err)
		}

		encRecipients = append(encRecipients, recipient{
			EncryptedKey: encodeB64(encCEK),
			Header: recipientHeader{
				KID: base58.Encode(recKey),
			},
		})
	}

	return encRecipients, nil
}

func (p *Packer) buildAuthRecipients(cek []byte, recipients []ed25519.PublicKey,
	sender ed25519.PrivateKey) ([]recipient, error) {
	senderCurvePriv, err := cryptoutil.SecretEd25519toCurve25519(sender)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %s", ErrInvalidInput, err)
	}

	senderPub, ok := sender.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected sender public key type", ErrInvalidInput)
	}

	// the sender's encoded verkey is sealed per recipient so that only
	// addressees learn who produced the envelope
	senderVerKey := []byte(base58.Encode(senderPub))

	encRecipients := make([]recipient, 0, len(recipients))

	for _, recKey := range recipients {
		recCurvePub, err := recipientCurveKey(recKey)
		if err != nil {
			return nil, err
		}

		nonce := make([]byte, cryptoutil.NonceSize)
		if _, err := p.randSource.Read(nonce); err != nil {
			return nil, fmt.Errorf("pack: failed to generate box nonce: %w", err)
		}

		encCEK, err := box.Easy(cek, nonce, recCurvePub, senderCurvePriv)
		if err != nil {
			return nil, fmt.Errorf("pack: failed to box CEK: %w", err)
		}

		encSender, err := box.Seal(senderVerKey, recCurvePub, p.randSource)
		if err != nil {
			return nil, fmt.Errorf("pack: failed to seal sender key: %w", err)
		}

		encRecipients = append(encRecipients, recipient{
			EncryptedKey: encodeB64(encCEK),
			Header: recipientHeader{
				KID:    base58.Encode(recKey),
				Sender: encodeB64(encSender),
				IV:     encodeB64(nonce),
			},
		})
	}

	return encRecipients, nil
}

func recipientCurveKey(recKey ed25519.PublicKey) ([]byte, error) {
	recCurvePub, err := cryptoutil.PublicEd25519toCurve25519(recKey)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient key %s: %s", ErrInvalidInput, base58.Encode(recKey), err)
	}

	return recCurvePub, nil
}

// encodeProtected serializes the protected header and base64url encodes it.
// The returned string is carried verbatim into the envelope and used as the
// AEAD associated data; re-encoding it later would break authentication, since
// JSON serialization is not canonical.
func encodeProtected(alg string, encRecipients []recipient) (string, error) {
	protectedHeader := protected{
		Enc:        ContentEncryption,
		Typ:        EncodingType,
		Alg:        alg,
		Recipients: encRecipients,
	}

	protectedBytes, err := json.Marshal(protectedHeader)
	if err != nil {
		return "", fmt.Errorf("pack: failed to serialize protected header: %w", err)
	}

	return encodeB64(protectedBytes), nil
}

func (p *Packer) encryptPayload(cek, payload []byte, protectedB64 string) ([]byte, error) {
	chachaCipher, err := chacha.NewX(cek)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}

	nonce := make([]byte, chacha.NonceSizeX)
	if _, err := p.randSource.Read(nonce); err != nil {
		return nil, fmt.Errorf("pack: failed to generate payload nonce: %w", err)
	}

	// additional data is the base64url encoded protected header
	symPld := chachaCipher.Seal(nil, nonce, payload, []byte(protectedB64))

	// symPld has a length of len(payload) + Overhead(); the tag is the tail
	tagOffset := len(symPld) - chachaCipher.Overhead()

	env := envelope{
		Protected:  protectedB64,
		IV:         encodeB64(nonce),
		CipherText: encodeB64(symPld[:tagOffset]),
		Tag:        encodeB64(symPld[tagOffset:]),
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("pack: failed to serialize envelope: %w", err)
	}

	return out, nil
}
