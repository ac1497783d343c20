package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"

	"github.com/Rrens/nl2sql/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
