// The main package for the prospector executable.
package main

import (
	"github.com/localrank/keyword-arbitrage/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
