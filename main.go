// The main package for the linkcrawler executable.
package main

import (
	"github.com/JakeFAU/linkcrawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
