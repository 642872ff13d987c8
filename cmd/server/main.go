// Package main runs the ledger API server.
package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/db"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/memstore"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"

	_ "github.com/lib/pq"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.GetLogger(config)

	store, err := openStore(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot open store")
	}

	gin.SetMode(gin.ReleaseMode)

	server, err := httpserver.New(store, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	logger.Info().Str("store", config.StoreDriver).Msg("LEDGER API SERVER HAS STARTED")

	err = server.Engine.Run(config.ServerAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}

func openStore(config configpkg.Config, logger zerolog.Logger) (ledgerservice.Store, error) {
	switch config.StoreDriver {
	case configpkg.StoreMemory:
		return memstore.New(), nil
	case configpkg.StorePostgres:
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}

	conn, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}

	src, err := db.Source()
	if err != nil {
		return nil, fmt.Errorf("cannot read migrations: %w", err)
	}

	if err := dbpkg.MigrateUp(conn, src); err != nil {
		return nil, fmt.Errorf("cannot migrate database: %w", err)
	}

	return ledgerrepo.NewRepoPGS(conn, ledgerrepo.Config{
		LockTimeout:        config.LockTimeout,
		BreakerMaxFailures: config.BreakerMaxFailures,
		BreakerOpenTimeout: config.BreakerOpenTimeout,
	}, logger), nil
}
