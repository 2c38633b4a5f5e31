// ABOUTME: Entry point for the clearmatch CLI, HTTP API, and MCP server
// ABOUTME: All routing lives in the cli package
package main

import (
	"fmt"
	"os"

	"github.com/clear-match/clearmatch/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
