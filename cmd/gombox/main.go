package main

import (
	"os"

	"github.com/hedisam/gombox/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
