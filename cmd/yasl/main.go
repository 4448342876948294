// Command yasl is the CLI shell over the compiler/validate engine: a thin
// surface, not a feature in its own right.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
