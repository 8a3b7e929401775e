package main

import (
	"os"

	"github.com/bimmerbailey/logwarden/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
