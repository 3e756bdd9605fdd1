// Command privacyctl masks documents, reverses masked text and manages the
// fund registry without running the daemon.
package main

import (
	"os"
)

func main() {
	os.Exit(Run())
}
