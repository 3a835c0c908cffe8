/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import "github.com/didcomm-go/envelope/pkg/cmd"

func main() {
	cmd.Execute()
}
