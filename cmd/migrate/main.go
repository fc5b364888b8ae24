package main

import (
	"context"

	"redbead/internal/config"
	"redbead/internal/migrate"
	"redbead/internal/pkg/logx"
)

func main() {
	cfg := config.FromEnv()
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logger := logx.For("migrate")

	version, err := migrate.Apply(context.Background(), cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	logger.Info().Uint("version", version).Msg("migrations applied")
}
