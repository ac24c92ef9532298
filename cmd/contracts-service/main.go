package main

import (
	"fmt"
	"os"

	"github.com/nurpe/buildops-contracts/internal/auth"
	"github.com/nurpe/buildops-contracts/internal/config"
	"github.com/nurpe/buildops-contracts/internal/db"
	"github.com/nurpe/buildops-contracts/internal/excel"
	httphandler "github.com/nurpe/buildops-contracts/internal/http"
	"github.com/nurpe/buildops-contracts/internal/http/middleware"
	"github.com/nurpe/buildops-contracts/internal/logger"
	"github.com/nurpe/buildops-contracts/internal/pdf"
	"github.com/nurpe/buildops-contracts/internal/repository"
	"github.com/nurpe/buildops-contracts/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	excelGenerator := excel.NewGenerator()
	pdfGenerator, err := pdf.NewGenerator()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init pdf generator")
	}

	contractService := service.NewContractService(contractRepo, excelGenerator, pdfGenerator, cfg)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
