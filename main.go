// Package main is the entry point for the malloy CLI application.
// It compiles Malloy queries through the compiler service and runs them.
package main

import (
	"malloy/cli/cmd"
)

// main is the entry point for the malloy CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
