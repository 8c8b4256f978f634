package main

import (
	"os"

	"github.com/joho/godotenv"

	obsagentcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent"
)

func main() {
	// Provider API keys may live in a local .env file.
	_ = godotenv.Load()

	cmd := obsagentcmder.NewObsagentCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
