/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/didcomm-go/envelope/pkg/common/log"
	"github.com/didcomm-go/envelope/pkg/crypto/box"
	"github.com/didcomm-go/envelope/pkg/internal/cryptoutil"
	"github.com/didcomm-go/envelope/pkg/kms"
)

var logger = log.New("envelope")

// Unpack decodes and decrypts an envelope produced by Pack (or an
// interoperating implementation of the legacy format).
//
// The lookup capability decides which recipient entry this agent can open; it
// is the only step that may block on I/O, and ctx is passed to it unchanged.
// All failures to open the envelope, whether no key matched or a decryption
// step failed, surface as ErrCannotDecrypt; the cause is debug-logged only.
func (p *Packer) Unpack(ctx context.Context, envData []byte, lookup kms.KeyLookup) (*Envelope, error) {
	var env envelope

	if err := json.Unmarshal(envData, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedEnvelope, err)
	}

	if env.Protected == "" || env.IV == "" || env.CipherText == "" || env.Tag == "" {
		return nil, fmt.Errorf("%w: missing envelope fields", ErrMalformedEnvelope)
	}

	protectedData, err := decodeProtected(env.Protected)
	if err != nil {
		return nil, err
	}

	recip, recKey, privKey, err := findRecipient(ctx, protectedData, lookup)
	if err != nil {
		return nil, err
	}

	mode, err := recip.mode()
	if err != nil {
		return nil, err
	}

	if (mode == wrapAuth) != (protectedData.Alg == algAuthcrypt) {
		return nil, fmt.Errorf("%w: recipient entry inconsistent with %s", ErrMalformedHeader, protectedData.Alg)
	}

	var (
		senderKey []byte
		cek       []byte
	)

	if mode == wrapAuth {
		senderKey, cek, err = unwrapCEKAuthcrypt(recip, recKey, privKey)
	} else {
		cek, err = unwrapCEKAnoncrypt(recip, recKey, privKey)
	}

	if err != nil {
		logger.Debugf("unpack: key unwrap failed: %s", err)
		return nil, ErrCannotDecrypt
	}

	message, err := decodeCipherText(cek, &env)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Message:    message,
		ToVerKey:   recKey,
		FromVerKey: senderKey,
	}, nil
}

func decodeProtected(protectedB64 string) (*protected, error) {
	protectedBytes, err := decodeB64(protectedB64)
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %s", ErrMalformedHeader, err)
	}

	var protectedData protected

	if err := json.Unmarshal(protectedBytes, &protectedData); err != nil {
		return nil, fmt.Errorf("%w: protected header: %s", ErrMalformedHeader, err)
	}

	if protectedData.Typ != EncodingType {
		return nil, fmt.Errorf("%w: message type %s not supported", ErrMalformedHeader, protectedData.Typ)
	}

	if protectedData.Enc != ContentEncryption {
		return nil, fmt.Errorf("%w: encryption algorithm %s not supported", ErrMalformedHeader, protectedData.Enc)
	}

	if protectedData.Alg != algAuthcrypt && protectedData.Alg != algAnoncrypt {
		return nil, fmt.Errorf("%w: message format %s not supported", ErrMalformedHeader, protectedData.Alg)
	}

	if len(protectedData.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMalformedHeader)
	}

	return &protectedData, nil
}

// findRecipient extracts the candidate verification keys from the recipient
// headers and asks the lookup capability which one this agent holds. A lookup
// miss is reported as ErrCannotDecrypt, indistinguishable from a failed
// decryption.
func findRecipient(ctx context.Context, protectedData *protected,
	lookup kms.KeyLookup) (*recipient, []byte, ed25519.PrivateKey, error) {
	candidateKeys := make([]string, 0, len(protectedData.Recipients))

	for _, candidate := range protectedData.Recipients {
		keyBytes := base58.Decode(candidate.Header.KID)
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, nil, nil, fmt.Errorf("%w: invalid recipient kid", ErrMalformedHeader)
		}

		candidateKeys = append(candidateKeys, candidate.Header.KID)
	}

	idx, privKey, err := lookup.FindVerKey(ctx, candidateKeys)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, nil, ctxErr
		}

		logger.Debugf("unpack: no recipient key accessible: %s", err)

		return nil, nil, nil, ErrCannotDecrypt
	}

	if idx < 0 || idx >= len(protectedData.Recipients) {
		return nil, nil, nil, fmt.Errorf("%w: lookup returned out of range index %d", ErrInvalidInput, idx)
	}

	if len(privKey) != ed25519.PrivateKeySize {
		return nil, nil, nil, fmt.Errorf("%w: lookup returned %d-byte private key", ErrInvalidInput, len(privKey))
	}

	recip := &protectedData.Recipients[idx]

	return recip, base58.Decode(recip.Header.KID), privKey, nil
}

func unwrapCEKAuthcrypt(recip *recipient, recKey []byte, privKey ed25519.PrivateKey) ([]byte, []byte, error) {
	recCurvePub, err := cryptoutil.PublicEd25519toCurve25519(recKey)
	if err != nil {
		return nil, nil, err
	}

	recCurvePriv, err := cryptoutil.SecretEd25519toCurve25519(privKey)
	if err != nil {
		return nil, nil, err
	}

	encSender, err := decodeB64(recip.Header.Sender)
	if err != nil {
		return nil, nil, err
	}

	nonce, err := decodeB64(recip.Header.IV)
	if err != nil {
		return nil, nil, err
	}

	encCEK, err := decodeB64(recip.EncryptedKey)
	if err != nil {
		return nil, nil, err
	}

	// recover the sender's verification key, sealed to this recipient
	senderVerKey, err := box.SealOpen(encSender, recCurvePub, recCurvePriv)
	if err != nil {
		return nil, nil, err
	}

	senderKey := base58.Decode(string(senderVerKey))
	if len(senderKey) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("invalid sender key in envelope")
	}

	senderCurvePub, err := cryptoutil.PublicEd25519toCurve25519(senderKey)
	if err != nil {
		return nil, nil, err
	}

	cek, err := box.EasyOpen(encCEK, nonce, senderCurvePub, recCurvePriv)
	if err != nil {
		return nil, nil, err
	}

	return senderKey, cek, nil
}

func unwrapCEKAnoncrypt(recip *recipient, recKey []byte, privKey ed25519.PrivateKey) ([]byte, error) {
	recCurvePub, err := cryptoutil.PublicEd25519toCurve25519(recKey)
	if err != nil {
		return nil, err
	}

	recCurvePriv, err := cryptoutil.SecretEd25519toCurve25519(privKey)
	if err != nil {
		return nil, err
	}

	encCEK, err := decodeB64(recip.EncryptedKey)
	if err != nil {
		return nil, err
	}

	return box.SealOpen(encCEK, recCurvePub, recCurvePriv)
}

// decodeCipherText decodes (from base64) and decrypts the ciphertext using chacha20poly1305.
func decodeCipherText(cek []byte, env *envelope) ([]byte, error) {
	// the AAD is the protected string exactly as it appeared on the wire;
	// it is never re-derived from the parsed header
	aad := []byte(env.Protected)

	cipherText, err := decodeB64(env.CipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %s", ErrMalformedEnvelope, err)
	}

	nonce, err := decodeB64(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %s", ErrMalformedEnvelope, err)
	}

	if len(nonce) != chacha.NonceSizeX {
		return nil, fmt.Errorf("%w: invalid size for message nonce", ErrMalformedEnvelope)
	}

	tag, err := decodeB64(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %s", ErrMalformedEnvelope, err)
	}

	if !cryptoutil.IsCEKValid(cek) {
		logger.Debugf("unpack: unwrapped CEK has invalid size %d", len(cek))
		return nil, ErrCannotDecrypt
	}

	chachaCipher, err := chacha.NewX(cek)
	if err != nil {
		return nil, ErrCannotDecrypt
	}

	payload := append(cipherText, tag...)

	message, err := chachaCipher.Open(nil, nonce, payload, aad)
	if err != nil {
		logger.Debugf("unpack: payload authentication failed: %s", err)
		return nil, ErrCannotDecrypt
	}

	return message, nil
}
