/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import "errors"

// Sentinel errors for errors.Is() checks.
var (
	// ErrInvalidInput is returned by Pack when its arguments cannot form a
	// valid envelope, such as an empty recipient list or a malformed key.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedEnvelope is returned by Unpack when the outer JSON document
	// is not a structurally valid envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMalformedHeader is returned by Unpack when the protected header does
	// not decode, advertises an unsupported format, or carries an inconsistent
	// recipient entry.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrCannotDecrypt is returned by Unpack both when no recipient entry
	// matches a locally held key and when any decryption step fails. The two
	// cases are deliberately indistinguishable to the caller: either way the
	// envelope cannot be opened by this recipient, and distinct errors would
	// hand an observer an oracle against the recipient list.
	ErrCannotDecrypt = errors.New("unable to decrypt envelope")
)
