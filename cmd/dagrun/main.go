package main

import (
	"os"

	"github.com/Iron-Ham/dagrun/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
