/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"crypto/ed25519"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/didcomm-go/envelope/pkg/envelope"
	"github.com/didcomm-go/envelope/pkg/kms"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Decrypt a legacy envelope",
	Long: `Decrypt an envelope using one of the given private keys. The matched
recipient key and, for Authcrypt envelopes, the sender verkey are reported on
stderr; the plaintext goes to --out.`,
	RunE: runUnpack,
}

var unpackFlags struct {
	keys []string
	in   string
	out  string
}

func init() {
	unpackCmd.Flags().StringArrayVar(&unpackFlags.keys, "key", nil, "private key, base58 (repeatable)")
	unpackCmd.Flags().StringVar(&unpackFlags.in, "in", "-", "envelope file, - for stdin")
	unpackCmd.Flags().StringVar(&unpackFlags.out, "out", "-", "message file, - for stdout")

	if err := unpackCmd.MarkFlagRequired("key"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(unpackCmd)
}

func runUnpack(cmd *cobra.Command, args []string) error {
	store := kms.NewStore()

	for _, key := range unpackFlags.keys {
		keyBytes := base58.Decode(key)
		if len(keyBytes) != ed25519.PrivateKeySize {
			return errors.New("--key is not a base58 Ed25519 private key")
		}

		if _, err := store.Add(keyBytes); err != nil {
			return errors.Wrap(err, "loading key")
		}
	}

	envData, err := readInput(unpackFlags.in)
	if err != nil {
		return err
	}

	unpacked, err := envelope.New().Unpack(cmd.Context(), envData, store)
	if err != nil {
		return errors.Wrap(err, "unpacking envelope")
	}

	logrus.Infof("opened with recipient key %s", base58.Encode(unpacked.ToVerKey))

	if unpacked.FromVerKey != nil {
		logrus.Infof("authenticated sender %s", base58.Encode(unpacked.FromVerKey))
	} else {
		logrus.Info("anonymous sender")
	}

	return writeOutput(unpackFlags.out, unpacked.Message)
}
