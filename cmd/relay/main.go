package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/relay"
	"github.com/dmitrijs2005/groupsync/internal/relay/auth"
	"github.com/dmitrijs2005/groupsync/internal/relay/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.IssueTokenFor != "" {
		tok, err := auth.GenerateToken(cfg.IssueTokenFor, []byte(cfg.SecretKey), cfg.TokenValidity)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	logger, err := logging.NewProductionZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := relay.NewApp(cfg, logger).Run(context.Background()); err != nil {
		logger.Error(context.Background(), "Relay failed", "error", err)
		os.Exit(1)
	}
}
