// Creates or resets a back-office account.
// Usage: seeduser -username admin -password '...' [-nombre "Admin"] [-rol admin]
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"oishi/internal/config"
	"oishi/internal/infra"
	"oishi/internal/repository"
	"oishi/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	username := flag.String("username", "admin", "login name")
	password := flag.String("password", os.Getenv("SEED_PASSWORD"), "password (min 8 characters); defaults to $SEED_PASSWORD")
	nombre := flag.String("nombre", "Administrador", "display name")
	rol := flag.String("rol", service.RolAdmin, "admin | staff")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	auth := service.NewAuthService(repository.NewUsuarioRepository(db), cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u, err := auth.GuardarUsuario(ctx, *username, *nombre, *password, *rol)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to save user")
	}
	log.Info().Str("username", u.Username).Str("rol", u.Rol).Msg("user created or updated")
}
