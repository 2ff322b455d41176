package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/avolkov/taskdeck/internal/buildinfo"
	"github.com/avolkov/taskdeck/internal/client/cli"
	"github.com/avolkov/taskdeck/internal/client/config"
	"github.com/avolkov/taskdeck/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
