package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	foodHandler "sicupang-ai/internal/api/handlers/food"
	"sicupang-ai/internal/api/handlers/health"
	"sicupang-ai/internal/api/middleware"
	"sicupang-ai/internal/core/ai/cache"
	"sicupang-ai/internal/core/ai/gemini"
	aiService "sicupang-ai/internal/core/ai/service"
	"sicupang-ai/internal/core/catalog"
	"sicupang-ai/internal/core/embedding"
	"sicupang-ai/internal/core/extract"
	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/core/vector"
	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/infrastructure/persistence"
	"sicupang-ai/internal/pkg/common"
)

// 請求超時設置
const timeoutDuration = 120 * time.Second

// SetupRouter 設置路由並完成服務裝配
func SetupRouter(cfg *config.Config, db *gorm.DB, responseCache cache.Store, pool *queue.Manager) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	// 限流與請求去重
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	router.Use(middleware.Deduplication(cfg))

	common.LogInfo("Initializing services",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Int("queue_workers", cfg.Queue.Workers),
		zap.String("model", cfg.Gemini.Model),
	)

	// 外部服務客戶端
	geminiClient := gemini.NewClient(&cfg.Gemini)
	embedder := embedding.NewClient(&cfg.Embedding)
	vectorIndex := vector.NewClient(&cfg.Pinecone)

	// AI 服務（生成模型加回應快取）
	generator := aiService.NewService(geminiClient, responseCache, cfg)

	// 資料存取層
	catalogRepo := persistence.NewCatalogRepository(db)
	recipeCacheRepo := persistence.NewRecipeCacheRepository(db)
	consumptionRepo := persistence.NewConsumptionRepository(db)

	// 解析管線
	resolver := catalog.NewResolver(catalogRepo, cfg.Extract.MatchThreshold)
	extractor := extract.NewExtractor(generator, embedder, vectorIndex, pool, cfg)
	recorder := extract.NewRecorder(resolver, consumptionRepo, recipeCacheRepo, pool)
	extractSvc := extract.NewService(recipeCacheRepo, extractor, recorder, pool)

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		// 設置請求超時
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		// 健康檢查所需的依賴
		c.Set("config", cfg)
		c.Set("db", db)
		c.Set("queue", pool)

		// 處理請求
		c.Next()

		// 檢查是否超時
		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
				"details": gin.H{
					"timeout": timeoutDuration.String(),
				},
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		handler := foodHandler.NewHandler(extractSvc)

		foodGroup := api.Group("/food")
		{
			// 批次食材解析與攝取紀錄
			foodGroup.POST("/ingredient-extract", handler.HandleIngredientExtract)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}
