package main

import (
	"os"

	"github.com/reloom/reloom-go/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
