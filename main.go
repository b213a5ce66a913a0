package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"giveflow/cmd"
)

func main() {
	// Env config also works without a .env file
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
