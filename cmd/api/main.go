// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/config"
	"github.com/yourusername/excel-translator/internal/jobs"
	"github.com/yourusername/excel-translator/internal/logging"
	"github.com/yourusername/excel-translator/internal/session"
	"github.com/yourusername/excel-translator/internal/storage"
	"github.com/yourusername/excel-translator/internal/translate"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.GinMode != gin.ReleaseMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	store, err := storage.NewLocal(cfg.TempDir, cfg.MaxFileSize)
	if err != nil {
		logger.Fatal("Failed to prepare storage", zap.Error(err))
	}

	registry := session.NewRegistry()
	service := translate.NewService(store, cfg.ChunkSize, nil)

	manager, err := setupJobs(cfg, service, registry, logger)
	if err != nil {
		logger.Fatal("Failed to set up job queue", zap.Error(err))
	}
	manager.StartWorkers()

	// ルーティングの設定
	setupRoutes(router, cfg, store, registry, manager, logger)

	// サーバーの起動
	addr := ":" + cfg.Port
	logger.Info("Starting API server",
		zap.String("addr", addr), zap.String("mode", cfg.GinMode))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "excel-translator-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, store *storage.Local, registry *session.Registry, manager *jobs.Manager, logger *zap.Logger) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	{
		api.GET("/languages", translate.LanguagesHandler())
		api.POST("/translate", translate.TranslateHandler(translate.HandlerOptions{
			Config:    cfg,
			Store:     store,
			Registry:  registry,
			Scheduler: manager,
			Logger:    logger,
		}))
		api.GET("/download/:filename", translate.DownloadHandler(store))

		logRoutes := api.Group("/logs")
		{
			logRoutes.POST("/session", session.CreateSessionHandler(registry))
			logRoutes.GET("/stream", session.StreamHandler(registry, logger))
		}
	}
}
