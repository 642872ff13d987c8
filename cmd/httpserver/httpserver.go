// Package httpserver manages server creation and api routing.
package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/accountdelivery"
	"github.com/go-petr/pet-ledger/internal/ledgerdelivery"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
)

// Server holds the ledger, handlers router and configuration.
type Server struct {
	Ledger     *ledgerservice.Service
	Engine     *gin.Engine
	TokenMaker tokenpkg.Maker
	Config     configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// LedgerConfig converts the application configuration into the ledger engine configuration.
func LedgerConfig(config configpkg.Config) ledgerservice.Config {
	return ledgerservice.Config{
		LockTimeout:    config.LockTimeout,
		MaxRetries:     config.MaxRetries,
		RetryBaseDelay: config.RetryBaseDelay,
		HistoryLimit:   config.HistoryLimit,
	}
}

// New creates Server type with the ledger engine on top of store and its routes.
func New(store ledgerservice.Store, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	tokenMaker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		return nil, fmt.Errorf("cannot create token maker: %w", err)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("accountkind", accountdelivery.ValidAccountKind); err != nil {
			return nil, fmt.Errorf("cannot register account kind validator: %w", err)
		}

		if err := ledgerdelivery.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("cannot register amount validator: %w", err)
		}
	}

	ledger := ledgerservice.New(store, LedgerConfig(config))

	accountHandler := accountdelivery.NewHandler(ledger)
	ledgerHandler := ledgerdelivery.NewHandler(ledger)

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.POST("/accounts", accountHandler.Create)
	authRoutes.GET("/accounts", accountHandler.List)
	authRoutes.GET("/accounts/:id", accountHandler.Get)
	authRoutes.GET("/accounts/:id/balance", accountHandler.Balance)
	authRoutes.GET("/accounts/:id/transactions", accountHandler.History)
	authRoutes.POST("/accounts/:id/freeze", accountHandler.Freeze)
	authRoutes.POST("/accounts/:id/unfreeze", accountHandler.Unfreeze)
	authRoutes.POST("/accounts/:id/close", accountHandler.Close)

	authRoutes.POST("/accounts/:id/deposit", ledgerHandler.Deposit)
	authRoutes.POST("/accounts/:id/withdraw", ledgerHandler.Withdraw)
	authRoutes.POST("/transfers", ledgerHandler.Transfer)
	authRoutes.GET("/transactions/:id", ledgerHandler.GetTransaction)

	server := &Server{
		Ledger:     ledger,
		Engine:     engine,
		TokenMaker: tokenMaker,
		Config:     config,
	}

	return server, nil
}
