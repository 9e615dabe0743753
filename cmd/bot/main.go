// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/solsniper/simbot/internal/bot"
	"github.com/solsniper/simbot/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.New(nil)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting simulation bot")

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	runner := bot.NewRunner(log)
	if err := runner.Initialize(ctx, configPath); err != nil {
		log.Fatal("Failed to initialize bot", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("Bot execution error", zap.Error(err))
	}

	runner.WaitForShutdown()
}
