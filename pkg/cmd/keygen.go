/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 keypair",
	Long: `Generate a fresh Ed25519 keypair and print it base58 encoded.
The verification key doubles as the recipient identifier (kid) in envelopes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return errors.Wrap(err, "generating keypair")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "verkey:  %s\nprivkey: %s\n",
			base58.Encode(pub), base58.Encode(priv))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
