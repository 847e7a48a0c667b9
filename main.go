package main

import (
	"os"

	"github.com/ca-srg/leakscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
