package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/groupsync/internal/client/cli"
	"github.com/dmitrijs2005/groupsync/internal/client/config"
	"github.com/dmitrijs2005/groupsync/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
