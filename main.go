package main

import (
	"os"

	"github.com/openwalletd/yieldfold/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
