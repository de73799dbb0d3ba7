package main

import (
	"os"

	"github.com/ridgeline-ems/ift-dispatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
