package main

import (
	"log"

	"memorymaze/backend/ai"
	"memorymaze/backend/cache"
	"memorymaze/backend/config"
	"memorymaze/backend/routes"
	"memorymaze/backend/services"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	// Initialize storage
	store, err := storage.Open(cfg, logger)
	if err != nil {
		logger.Fatal("Error initializing storage", "driver", cfg.StorageDriver, "error", err)
	}
	defer store.Close()

	kv := cache.New(cfg, logger)
	defer kv.Close()

	// AI provider
	keys := ai.NewKeyRing(cfg.OpenAIKeys)
	if keys.Len() == 0 {
		logger.Warn("No OpenAI API key configured, chat features will answer 503")
	}
	scheduler, err := keys.ScheduleDailyReset(logger)
	if err != nil {
		logger.Fatal("Error scheduling key stats reset", "error", err)
	}
	defer scheduler.Stop()

	client := ai.NewClient(cfg, keys, logger)
	var judge services.AnswerJudge
	if cfg.AIJudgeEnabled && keys.Len() > 0 {
		judge = ai.NewAnswerJudge(client)
	}

	app := routes.NewApp(routes.Dependencies{
		Config:    cfg,
		Store:     store,
		Cache:     kv,
		Log:       logger,
		Assistant: ai.NewChatService(client, store, kv, cfg.ChatCacheTTL, logger),
		Judge:     judge,
		Keys:      keys,
	})

	// Start server
	logger.Info("Memory Maze backend starting", "port", cfg.ServerPort, "storage", cfg.StorageDriver)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Error("Server stopped", "error", err)
	}
}
