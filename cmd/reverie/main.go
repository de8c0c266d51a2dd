// Command reverie is the command-line client for a Reverie journal: ask
// questions, add entries, import Markdown notes and edit the profile.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
