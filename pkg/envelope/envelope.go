/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package envelope implements the legacy Aries/Indy pack/unpack envelope
// format (Aries RFC 0019): a JWE-like JSON wire format that encrypts one
// message for an arbitrary number of recipients.
//
// The message body is encrypted once with XChacha20Poly1305 under a fresh
// content encryption key (CEK); the CEK is then wrapped separately for each
// recipient using curve25519 boxes. Two mutually exclusive modes exist:
// Anoncrypt seals the CEK anonymously, Authcrypt additionally proves the
// sender's identity by boxing the CEK between the sender and recipient keys
// and sealing the sender's verification key alongside it.
package envelope

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Protected header values fixed by the wire format. Implementations must match
// these exactly to interoperate.
const (
	// ContentEncryption is the `enc` protected header of every envelope this package produces.
	ContentEncryption = "xchacha20poly1305_ietf"

	// EncodingType is the `typ` protected header identifying the legacy format.
	EncodingType = "JWM/1.0"

	algAuthcrypt = "Authcrypt"
	algAnoncrypt = "Anoncrypt"
)

// Envelope holds the result of unpacking: the decrypted message, the
// recipient verification key the envelope was opened with, and, for Authcrypt
// envelopes, the sender's verification key (nil for Anoncrypt).
type Envelope struct {
	Message    []byte
	ToVerKey   []byte
	FromVerKey []byte
}

// envelope is the full payload envelope for the JSON message.
type envelope struct {
	Protected  string `json:"protected,omitempty"`
	IV         string `json:"iv,omitempty"`
	CipherText string `json:"ciphertext,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// protected is the protected header of the JSON envelope.
type protected struct {
	Enc        string      `json:"enc,omitempty"`
	Typ        string      `json:"typ,omitempty"`
	Alg        string      `json:"alg,omitempty"`
	Recipients []recipient `json:"recipients,omitempty"`
}

// recipient holds the data for a recipient in the envelope header.
type recipient struct {
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	Header       recipientHeader `json:"header,omitempty"`
}

// recipientHeader holds the header data for a recipient.
type recipientHeader struct {
	KID    string `json:"kid,omitempty"`
	Sender string `json:"sender,omitempty"`
	IV     string `json:"iv,omitempty"`
}

type wrapMode int

const (
	wrapAnon wrapMode = iota
	wrapAuth
)

// mode classifies the recipient entry as Anoncrypt or Authcrypt wrapping.
// The sender and iv fields must be set together or not at all; the two
// half-populated combinations are rejected at the boundary.
func (r *recipient) mode() (wrapMode, error) {
	switch {
	case r.Header.Sender != "" && r.Header.IV != "":
		return wrapAuth, nil
	case r.Header.Sender == "" && r.Header.IV == "":
		return wrapAnon, nil
	default:
		return 0, fmt.Errorf("%w: recipient sender and iv must be set together", ErrMalformedHeader)
	}
}

// encodeB64 encodes binary envelope fields with the URL-safe alphabet and no
// padding.
func encodeB64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeB64 decodes URL-safe base64 with or without padding. Envelopes from
// other implementations of this format may carry either.
func decodeB64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
