package food

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sicupang-ai/internal/core/extract"
	"sicupang-ai/internal/pkg/common"
)

// BatchProcessor 批次處理介面（由 extract.Service 實作）
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, familyID uint, items []extract.FoodItem, date time.Time) [][]extract.Outcome
}

// BatchRequest 批次解析請求
type BatchRequest struct {
	FamilyID uint               `json:"family_id" binding:"required"`
	Items    []extract.FoodItem `json:"items" binding:"required,min=1,dive"`
}

// Handler 食物解析處理器
type Handler struct {
	svc BatchProcessor
}

// NewHandler 創建處理器
func NewHandler(svc BatchProcessor) *Handler {
	return &Handler{svc: svc}
}

// HandleIngredientExtract 處理 POST /api/v1/food/ingredient-extract
func (h *Handler) HandleIngredientExtract(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("批次解析請求格式錯誤",
			zap.Error(err),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	common.LogInfo("收到批次解析請求",
		zap.Uint("family_id", req.FamilyID),
		zap.Int("items", len(req.Items)),
		zap.String("request_id", c.GetHeader("X-Request-ID")),
	)

	// 攝取日期取處理當日
	results := h.svc.ProcessBatch(c.Request.Context(), req.FamilyID, req.Items, time.Now())

	// 全數失敗也是正常回應，由每筆 status 表達結果
	c.JSON(http.StatusOK, gin.H{
		"response": results,
	})
}
