package main

import (
	"os"

	"github.com/solatis/firewrite/cmd/firewrite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
