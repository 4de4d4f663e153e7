// The main package for the wowhead-parser executable.
package main

import (
	"github.com/JakeFAU/wowhead-parser/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
