package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"agentdex/cmd"
)

func main() {
	// A .env file is optional; AGENTDEX_* variables may come from the shell
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
