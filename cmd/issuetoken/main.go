// Package main issues a bearer token for an account owner.
//
// Owners are identified by an opaque id, the ledger keeps no user records.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
)

func main() {
	ownerID := flag.Int64("owner", 0, "owner id the token is issued for")
	duration := flag.Duration("duration", 15*time.Minute, "token lifetime")
	flag.Parse()

	if *ownerID <= 0 {
		log.Fatal().Int64("owner", *ownerID).Msg("owner must be positive")
	}

	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	maker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create token maker")
	}

	token, payload, err := maker.CreateToken(*ownerID, *duration)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create token")
	}

	log.Info().Int64("owner", payload.OwnerID).Time("expires_at", payload.ExpiredAt).Msg("token issued")
	fmt.Println(token)
}
