package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"knx-resolve/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// 低于该置信度的推断直接丢弃
const minGuessConfidence = 0.5

// Interpreter 外部解释接口（便于 orchestrator 测试注入假实现）
type Interpreter interface {
	Interpret(ctx context.Context, mfr *domain.Manufacturer, segments domain.ParsedSegments) (*domain.Guess, error)
}

// oracleRequest 文本生成 API 请求（Anthropic messages 风格）
type oracleRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []oracleMessage `json:"messages"`
}

type oracleMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// oracleResponse 文本生成 API 响应
type oracleResponse struct {
	Content []oracleContentBlock `json:"content"`
}

type oracleContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OracleClient 产品推断客户端：把解析片段交给文本生成 API，要求严格 JSON 回答
type OracleClient struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

// NewOracleClient 创建推断客户端
func NewOracleClient(baseURL, apiKey, model string, logger *zap.Logger) *OracleClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", "2023-06-01").
		SetHeader("x-api-key", apiKey)

	return &OracleClient{
		httpClient: client,
		model:      model,
		logger:     logger,
	}
}

var _ Interpreter = (*OracleClient)(nil)

// Interpret 请求一次产品推断
// 返回 (nil, nil) 表示"无可用推断"（低置信度或未识别）；传输/解析失败返回 error，
// 调用方一律按"无推断"处理，不上抛。
func (c *OracleClient) Interpret(ctx context.Context, mfr *domain.Manufacturer, segments domain.ParsedSegments) (*domain.Guess, error) {
	request := oracleRequest{
		Model:     c.model,
		MaxTokens: 500,
		Messages: []oracleMessage{
			{Role: "user", Content: buildPrompt(mfr, segments)},
		},
	}

	c.logger.Info("Calling interpretation oracle",
		zap.String("knx_id", segments.Raw),
		zap.String("manufacturer", mfr.Name),
	)

	var response oracleResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("failed to call oracle: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode())
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	// 去掉模型偶尔带上的 markdown 围栏
	cleaned := strings.ReplaceAll(text.String(), "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var guess domain.Guess
	if err := json.Unmarshal([]byte(cleaned), &guess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oracle answer: %w", err)
	}

	if guess.Confidence < minGuessConfidence || guess.ProductName == "" {
		c.logger.Info("Oracle answer rejected",
			zap.String("knx_id", segments.Raw),
			zap.Float64("confidence", guess.Confidence),
		)
		return nil, nil
	}

	c.logger.Info("Oracle identified product",
		zap.String("knx_id", segments.Raw),
		zap.String("product_name", guess.ProductName),
		zap.String("order_number", guess.OrderNumber),
		zap.Float64("confidence", guess.Confidence),
	)
	return &guess, nil
}

func buildPrompt(mfr *domain.Manufacturer, segments domain.ParsedSegments) string {
	shortName := mfr.Name
	if mfr.ShortName.Valid {
		shortName = mfr.ShortName.String
	}

	field := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}

	return fmt.Sprintf(`You are a KNX building automation expert. Identify this KNX product from its ETS identifier.

KNX ID: %s
Manufacturer: %s (%s, %s)
Parsed segments:
- Hardware ID: %s
- Program Number: %s
- Program Version: %s
- Order Reference: %s

Based on your knowledge of %s KNX products, identify:
1. The product name
2. The order number / article number
3. The product category
4. A brief description

Respond with ONLY valid JSON (no markdown):
{
  "productName": "Switching actuator 16fold/shutter actuator 8fold 16A",
  "orderNumber": "1038 00",
  "category": "switch actuator",
  "description": "Combined switching and shutter actuator, 16 switching channels or 8 shutter channels, 16A, DIN rail mounting",
  "confidence": 0.9,
  "searchTerms": ["1038 00", "switching actuator 16fold"]
}

If you cannot identify the product, respond with:
{"productName": null, "orderNumber": null, "confidence": 0}`,
		segments.Raw,
		mfr.Name, shortName, mfr.KNXManufacturerID,
		field(segments.HardwareID, "unknown"),
		field(segments.ProgramNumber, "unknown"),
		field(segments.ProgramVersion, "unknown"),
		field(segments.OrderRef, "none"),
		mfr.Name,
	)
}
