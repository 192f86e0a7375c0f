// Command explainthat runs the code explanation server.
package main

import (
	"fmt"
	"os"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
