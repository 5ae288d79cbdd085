// Command devstub serves a fake Twitch token endpoint, IGDB API and image CDN
// for local development.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/erauner12/gamesdb/internal/devstub"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type stubConfig struct {
	Addr         string        `env:"DEVSTUB_ADDR"      envDefault:":8090"`
	ClientID     string        `env:"IGDB_CLIENT_ID"     envDefault:"dev-client"`
	ClientSecret string        `env:"IGDB_CLIENT_SECRET" envDefault:"dev-secret"`
	TokenTTL     time.Duration `env:"DEVSTUB_TOKEN_TTL"  envDefault:"1h"`
	TokenDelay   time.Duration `env:"DEVSTUB_TOKEN_DELAY"`
	Games        int           `env:"DEVSTUB_GAMES"      envDefault:"45"`
	Companies    int           `env:"DEVSTUB_COMPANIES"  envDefault:"12"`
	Engines      int           `env:"DEVSTUB_ENGINES"    envDefault:"4"`
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Str("service", "devstub").Logger()

	var cfg stubConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	stub := devstub.New(devstub.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenTTL:     cfg.TokenTTL,
		TokenDelay:   cfg.TokenDelay,
		Games:        cfg.Games,
		Companies:    cfg.Companies,
		Engines:      cfg.Engines,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      stub.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("clientId", cfg.ClientID).
			Str("tokenPath", devstub.TokenPath).
			Str("apiPath", devstub.APIPath).
			Str("imagePath", devstub.ImagePath).
			Msg("starting dev stub")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("dev stub failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("dev stub shutdown error")
	}
}
