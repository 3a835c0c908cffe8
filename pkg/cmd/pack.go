/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"crypto/ed25519"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/didcomm-go/envelope/pkg/envelope"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Encrypt a message into a legacy envelope",
	Long: `Encrypt a message for one or more recipient verification keys.
Without --sender-key the envelope is Anoncrypt; with it, Authcrypt.`,
	RunE: runPack,
}

var packFlags struct {
	to        []string
	senderKey string
	in        string
	out       string
}

func init() {
	packCmd.Flags().StringArrayVar(&packFlags.to, "to", nil, "recipient verkey, base58 (repeatable)")
	packCmd.Flags().StringVar(&packFlags.senderKey, "sender-key", "", "sender private key, base58 (enables Authcrypt)")
	packCmd.Flags().StringVar(&packFlags.in, "in", "-", "message file, - for stdin")
	packCmd.Flags().StringVar(&packFlags.out, "out", "-", "envelope file, - for stdout")

	if err := packCmd.MarkFlagRequired("to"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	recipients := make([]ed25519.PublicKey, 0, len(packFlags.to))

	for _, verKey := range packFlags.to {
		keyBytes := base58.Decode(verKey)
		if len(keyBytes) != ed25519.PublicKeySize {
			return errors.Errorf("recipient key %q is not a base58 Ed25519 verkey", verKey)
		}

		recipients = append(recipients, keyBytes)
	}

	var sender ed25519.PrivateKey

	if packFlags.senderKey != "" {
		keyBytes := base58.Decode(packFlags.senderKey)
		if len(keyBytes) != ed25519.PrivateKeySize {
			return errors.New("sender key is not a base58 Ed25519 private key")
		}

		sender = keyBytes
	}

	message, err := readInput(packFlags.in)
	if err != nil {
		return err
	}

	packed, err := envelope.New().Pack(message, recipients, sender)
	if err != nil {
		return errors.Wrap(err, "packing message")
	}

	return writeOutput(packFlags.out, packed)
}
