// Command chatctl streams chat responses from the command line and writes
// the rendered message list as an HTML document.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
