// Package main is the entry point of cipherswarm-dispatch.
package main

import (
	"os"

	"github.com/unclesp1d3r/cipherswarmdispatch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
