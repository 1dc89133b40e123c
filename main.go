package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tikdrop/internal"
	"tikdrop/pkg/logger"
)

var log = logger.Get("Main")

// main loads the user configuration (an optional YAML file overlaid
// with environment variables, optionally sourced from a .env file)
// and runs the application until interrupted.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Emit(logger.DEBUG, "No .env file found\n")
	}

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	config := internal.Config{}
	if err := config.Load(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %s\n", err.Error())
		os.Exit(1)
	}

	tikdrop, err := internal.New(config)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to initialise tikdrop: %s\n", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tikdrop.Run(ctx); err != nil {
		log.Emit(logger.FATAL, "tikdrop exited with error: %s\n", err.Error())
		os.Exit(1)
	}
}
