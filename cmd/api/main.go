package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"sicupang-ai/internal/api"
	"sicupang-ai/internal/core/ai/cache"
	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/infrastructure/persistence"
	"sicupang-ai/internal/pkg/common"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	// 使用 logger 記錄啟動信息
	common.LogInfo("載入設定",
		zap.String("gemini_model", cfg.Gemini.Model),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("pinecone_namespace", cfg.Pinecone.Namespace),
	)

	// 連線資料庫
	db, err := persistence.Connect(&cfg.Database)
	if err != nil {
		common.LogFatal("Failed to connect database", zap.Error(err))
	}

	// 初始化 AI 回應快取：預設進程內，設定 Redis 時改用共享後端
	var responseCache cache.Store
	if cfg.Cache.Enabled {
		if cfg.Redis.Enabled {
			redisStore, err := cache.NewRedisStore(cfg)
			if err != nil {
				common.LogFatal("Failed to initialize redis cache", zap.Error(err))
			}
			responseCache = redisStore
		} else {
			manager := cache.NewManager(cfg)
			if manager == nil {
				common.LogFatal("Failed to initialize cache manager")
			}
			responseCache = manager
		}
		defer responseCache.Close()
	}

	// 初始化隊列管理器
	pool := queue.NewManager(cfg)
	defer pool.Close()

	// 設置路由
	router, err := api.SetupRouter(cfg, db, responseCache, pool)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
