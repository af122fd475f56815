// The main package for the fundingcrawler executable.
package main

import (
	"github.com/JakeFAU/funding-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
