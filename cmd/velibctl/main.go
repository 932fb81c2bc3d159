// Command velibctl is the operator CLI of the Vélib advisor: it runs
// analyses and station lookups against the live providers and mints admin
// tokens.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
