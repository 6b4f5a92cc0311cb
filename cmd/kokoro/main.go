package main

import (
	"github.com/joho/godotenv"

	"kokoro/cmd/kokoro/cmd"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	cmd.Execute()
}
