// Command importer loads the product master from a CSV file using the same
// chunked reconciler as the HTTP API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
