// Command docqa is the entry point for the document QA agent.
// It provides a CLI interface (via Cobra) and an optional HTTP server for
// uploading documents and asking questions about them.
package main

import (
	"fmt"
	"os"

	"github.com/docqa/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
