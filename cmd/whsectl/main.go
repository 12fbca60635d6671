// Command whsectl inspects warehouse session records and sends session
// actions to the execution backend from the command line.
package main

import (
	"context"
	"os"
)

// Version is injected at build time
var Version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
