// The main package for the prospector executable.
package main

import (
	"github.com/quartierlabs/prospector/cmd"
)

// main defers all execution to the Cobra CLI layer.
func main() {
	cmd.Execute()
}
