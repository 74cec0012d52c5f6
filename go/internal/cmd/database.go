package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/andreyv/supplybot/go/internal/dbconfig"
	"github.com/andreyv/supplybot/go/internal/store"
)

func setupDatabase(ctx context.Context) (*pgxpool.Pool, *store.Postgres, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	pool, err := dbCfg.Connect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	stores := store.NewPostgres(pool)
	if err := stores.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return pool, stores, nil
}
