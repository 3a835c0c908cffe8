/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cmd implements the didcomm-envelope command line tool: small
// utilities to generate keys and to pack/unpack legacy envelopes from the
// shell.
package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "didcomm-envelope",
	Short: "Pack and unpack legacy DIDComm envelopes",
	Long: `didcomm-envelope packs and unpacks messages in the legacy Aries/Indy
envelope format (Aries RFC 0019). Keys are Ed25519, base58 encoded.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// readInput reads the message from the given file, or stdin when path is "-"
// or empty.
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)

		return data, errors.Wrap(err, "reading stdin")
	}

	data, err := os.ReadFile(path)

	return data, errors.Wrapf(err, "reading %s", path)
}

// writeOutput writes data to the given file, or stdout when path is "-" or empty.
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)

		return errors.Wrap(err, "writing stdout")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o600), "writing %s", path)
}
