// The main package for the videomaker executable.
package main

import (
	"github.com/bossmind/videomaker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
