package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"sicupang-ai/internal/core/ai/provider"
	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/pkg/common"
)

// Client Gemini generateContent API 客戶端
type Client struct {
	http   *resty.Client
	config *config.GeminiConfig
}

// part 內容片段
type part struct {
	Text string `json:"text"`
}

// content 對話內容
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// generationConfig 生成參數
type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// generateRequest generateContent 請求體
type generateRequest struct {
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// generateResponse generateContent 響應體
type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient 創建新的 Gemini 客戶端
func NewClient(cfg *config.GeminiConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   http,
		config: cfg,
	}
}

// Name 回傳供應商名稱
func (c *Client) Name() string {
	return "gemini"
}

// Generate 呼叫 generateContent，每個批次恰好一次
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if body.GenerationConfig.Temperature == 0 {
		body.GenerationConfig.Temperature = c.config.Temperature
	}
	if body.GenerationConfig.MaxOutputTokens == 0 {
		body.GenerationConfig.MaxOutputTokens = c.config.MaxTokens
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	start := time.Now()
	var result generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.config.APIKey).
		SetBody(&body).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/models/%s:generateContent", c.config.Model))

	common.LogAICall(c.config.Model, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.IsError() {
		if result.Error != nil {
			return nil, fmt.Errorf("gemini api error %d: %s", result.Error.Code, result.Error.Message)
		}
		return nil, fmt.Errorf("gemini api error: status %d", resp.StatusCode())
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	text := ""
	for _, p := range result.Candidates[0].Content.Parts {
		text += p.Text
	}

	common.LogDebug("Gemini 回應",
		zap.String("finish_reason", result.Candidates[0].FinishReason),
		zap.Int("total_tokens", result.UsageMetadata.TotalTokenCount),
	)

	return &provider.Response{
		Text:  text,
		Model: c.config.Model,
		Usage: provider.Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
