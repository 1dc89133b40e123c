// Package internal wires the tikdrop services together: the
// acquisition pipeline and its collaborators, the Telegram front
// end, and the HTTP status gateway.
package internal

import (
	"context"
	"fmt"
	"sync"

	"tikdrop/internal/api"
	"tikdrop/internal/bot"
	"tikdrop/internal/fetch"
	"tikdrop/internal/lookup"
	"tikdrop/internal/observe"
	"tikdrop/internal/pipeline"
	"tikdrop/internal/transcode"
	"tikdrop/internal/workspace"
	"tikdrop/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

type tikdropImpl struct {
	config Config

	bot           RunnableService
	statusGateway RunnableService
}

// New constructs the application from the provided configuration:
// workspace, lookup client, fetcher, normalizer and pipeline, plus
// the two long-running services that consume them.
func New(config Config) (*tikdropImpl, error) {
	ws, err := workspace.New(config.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	acquisitionPipeline := pipeline.New(
		lookup.NewClient(config.Lookup),
		fetch.NewFetcher(config.Fetch),
		transcode.New(config.Transcoder),
		ws,
	)

	metrics := observe.NewMetrics()
	telegramBot, err := bot.New(config.Bot, acquisitionPipeline, ws, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to construct Telegram bot: %w", err)
	}

	return &tikdropImpl{
		config:        config,
		bot:           telegramBot,
		statusGateway: api.NewStatusGateway(&config.API),
	}, nil
}

// Run brings up the bot and the status gateway and blocks until the
// provided context is cancelled or a service crashes.
func (tikdrop *tikdropImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	tikdrop.spawnAsyncService(ctx, wg, tikdrop.bot, "telegram-bot", crashHandler)
	tikdrop.spawnAsyncService(ctx, wg, tikdrop.statusGateway, "status-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "tikdrop services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService runs the provided service on its own goroutine,
// reporting panics and errors through the crash handler.
func (tikdrop *tikdropImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, label string, crash func(string, error)) {
	log.Emit(logger.INFO, "Spawning %s\n", label)
	wg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}()
}
