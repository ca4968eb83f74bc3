// Applies or reverts the embedded SQL migrations.
// Usage: migrate up | migrate down [steps]
package main

import (
	"os"
	"strconv"
	"time"

	"oishi/internal/config"
	"oishi/internal/infra"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("migrate up failed")
		}
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps < 1 {
				log.Fatal().Str("steps", os.Args[2]).Msg("steps must be a positive integer")
			}
		}
		if err := infra.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			log.Fatal().Err(err).Msg("migrate down failed")
		}
		log.Info().Int("steps", steps).Msg("migrations reverted")
	default:
		log.Fatal().Str("cmd", cmd).Msg("usage: migrate up | migrate down [steps]")
	}
}
