package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/commonprotocol/vault/internal/cli"
)

// main is the entry point for the vault simulator.
func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
