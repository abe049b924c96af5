package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/pkg/common"
)

// Embedder 文本向量化介面
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client OpenAI embeddings API 客戶端
type Client struct {
	http   *resty.Client
	config *config.EmbeddingConfig
}

// embeddingRequest embeddings 請求體
type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// embeddingResponse embeddings 響應體
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient 創建 embeddings 客戶端
func NewClient(cfg *config.EmbeddingConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	return &Client{
		http:   http,
		config: cfg,
	}
}

// Embed 將文本轉為向量
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var result embeddingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&embeddingRequest{
			Input: text,
			Model: c.config.Model,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/embeddings")

	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		if result.Error != nil {
			return nil, fmt.Errorf("embedding api error: %s", result.Error.Message)
		}
		return nil, fmt.Errorf("embedding api error: status %d", resp.StatusCode())
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding api returned no data")
	}

	common.LogDebug("文本向量化完成",
		zap.String("model", c.config.Model),
		zap.Int("dimension", len(result.Data[0].Embedding)),
		zap.Duration("耗時", time.Since(start)),
	)

	return result.Data[0].Embedding, nil
}
