// Command lineage runs lineage impact analyses against a catalog, either once
// from the command line or as an HTTP service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
