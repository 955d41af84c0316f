package main

import (
	"context"
	"log"
	"os"

	"pitchtrainer/database/postgres"
	"pitchtrainer/logger"
	"pitchtrainer/modelapi/cartesiaapi"
	"pitchtrainer/modelapi/deepgramapi"
	"pitchtrainer/modelapi/geminiapi"
	"pitchtrainer/modelapi/openaiapi"
	"pitchtrainer/telegram"
	"pitchtrainer/web"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

const defaultPort = "80"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})
	defer LogMiddleware.Sync()

	db := postgres.Connect(ctx, postgres.DatabaseConnectProps{Logger: LogMiddleware})

	// One-shot recovery of the pre-Postgres flat-file leaderboard. Safe to
	// leave the variable set across restarts: the migration is upsert-based.
	if snapshotPath := os.Getenv("LEGACY_SNAPSHOT_PATH"); snapshotPath != "" {
		migrateSnapshot(ctx, LogMiddleware, db, snapshotPath)
	}

	openaiClient := openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: LogMiddleware})
	geminiClient := geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: LogMiddleware})
	deepgramClient := deepgramapi.Connect(LogMiddleware)
	cartesiaClient := cartesiaapi.Connect(ctx, cartesiaapi.CartesiaConnectProps{Logger: LogMiddleware})

	telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
		Logger:   LogMiddleware,
		DB:       db,
		OpenAI:   openaiClient,
		Gemini:   geminiClient,
		Deepgram: deepgramClient,
		Cartesia: cartesiaClient,
	})

	Logger := LogMiddleware.Logger(ctx)

	webServer := web.Connect(web.WebConnectProps{Logger: LogMiddleware, DB: db})
	go func() {
		if err := webServer.Serve(ctx, port); err != nil {
			Logger.Error("[Web] HTTP server stopped", zap.Error(err))
		}
	}()

	if production {
		Logger.Info("[Telegram] Bot starting in production mode")
	} else {
		Logger.Info("[Telegram] Bot starting in development mode")
	}

	// Start Telegram bot (blocking call)
	telegramBot.Listen(ctx)
}

func migrateSnapshot(ctx context.Context, logMiddleware *logger.LogMiddleware, db *postgres.Database, path string) {
	Logger := logMiddleware.Logger(ctx)

	f, err := os.Open(path)
	if err != nil {
		Logger.Error("[Migration] Could not open legacy snapshot", zap.Error(err), zap.String("path", path))
		return
	}
	defer f.Close()

	migrated, err := db.MigrateFromSnapshot(ctx, f)
	if err != nil {
		Logger.Error("[Migration] Snapshot migration failed", zap.Error(err), zap.Int("migrated", migrated))
		return
	}
	Logger.Info("[Migration] Snapshot migrated", zap.Int("migrated", migrated), zap.String("path", path))
}
