// Command texdump inspects texture cache data offline: it de-tiles raw
// texture dumps, wraps shader words into shbin files, prints register
// traces and round-trips surfaces through the in-memory backend.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
