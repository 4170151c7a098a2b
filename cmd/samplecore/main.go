// Command samplecore runs the versioned sample metadata catalog.
package main

import (
	"context"
	"fmt"
	"os"

	"samplecore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
