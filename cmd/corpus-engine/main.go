package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/corpusforge/corpus-engine/cmd/corpus-engine/commands"
)

func main() {
	// Optional .env for local runs; absence is not an error.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
