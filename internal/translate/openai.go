package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/convert"
)

const (
	defaultModel      = "gpt-4.1-nano"
	maxResponseTokens = 16000
	temperature       = 0.3
)

// modelPricing はモデルごとの100万トークン単価（USD）です。
type modelPricing struct {
	prompt     float64
	completion float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4.1-mini":        {prompt: 0.15, completion: 0.60},
	"gpt-4.1-nano":        {prompt: 0.10, completion: 0.40},
	"gpt-4o":              {prompt: 2.50, completion: 10.00},
	"gpt-4o-mini":         {prompt: 0.15, completion: 0.60},
	"gpt-5-nano":          {prompt: 0.20, completion: 0.80},
	"gpt-4-turbo-preview": {prompt: 10.00, completion: 30.00},
	"gpt-4":               {prompt: 30.00, completion: 60.00},
	"gpt-3.5-turbo":       {prompt: 0.50, completion: 1.50},
}

// estimateCost はトークン使用量から概算コスト（USD）を求めます。
// 未知のモデルはgpt-4o相当として扱います。
func estimateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = pricingTable["gpt-4o"]
	}
	return float64(promptTokens)/1_000_000*pricing.prompt +
		float64(completionTokens)/1_000_000*pricing.completion
}

// RowTranslator は行データの集まりを翻訳します。
type RowTranslator interface {
	TranslateRows(ctx context.Context, rows []convert.Row, sourceLang, targetLang string) ([]convert.Row, error)
}

// TranslatorFactory はAPIキーとモデルから RowTranslator を構築します。
// キーはリクエストごとに異なるため、クライアントは都度生成します。
type TranslatorFactory func(apiKey, model string, logger *zap.Logger) RowTranslator

// OpenAITranslator はOpenAIのChat Completions APIで行データを翻訳します。
type OpenAITranslator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAITranslator は OpenAITranslator を生成します。
// model が空の場合は既定モデルを使います。
func NewOpenAITranslator(apiKey, model string, logger *zap.Logger) RowTranslator {
	if model == "" {
		model = defaultModel
	}
	return &OpenAITranslator{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// TranslateRows は行データをJSONモードで翻訳して返します。
func (t *OpenAITranslator) TranslateRows(ctx context.Context, rows []convert.Row, sourceLang, targetLang string) ([]convert.Row, error) {
	systemContent, err := json.Marshal(systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode system prompt: %w", err)
	}
	userContent, err := json.Marshal(buildUserPrompt(sourceLang, targetLang, rows))
	if err != nil {
		return nil, fmt.Errorf("failed to encode user prompt: %w", err)
	}

	t.logger.Info("translation request",
		zap.String("model", t.model),
		zap.String("source", sourceLang),
		zap.String("target", targetLang),
		zap.Int("rows", len(rows)))

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: string(systemContent)},
			{Role: openai.ChatMessageRoleUser, Content: string(userContent)},
		},
		Temperature: temperature,
		MaxTokens:   maxResponseTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, newError("GPT_API_ERROR", "翻訳APIの呼び出しに失敗しました。", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, newError("GPT_API_ERROR", "翻訳APIから空の応答が返されました。", nil)
	}

	t.logUsage(resp.Usage)

	translated, err := parseTranslatedRows(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, newError("GPT_API_ERROR", "翻訳結果の解析に失敗しました。", err)
	}

	if len(translated) < len(rows) {
		t.logger.Warn("row count mismatch in translation response",
			zap.Int("input", len(rows)), zap.Int("output", len(translated)))
	}

	return translated, nil
}

func (t *OpenAITranslator) logUsage(usage openai.Usage) {
	cost := estimateCost(t.model, usage.PromptTokens, usage.CompletionTokens)
	t.logger.Info("token usage",
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens),
		zap.Int("totalTokens", usage.TotalTokens),
		zap.String("estimatedCost", fmt.Sprintf("$%.6f", cost)))
}

// parseTranslatedRows はJSONモードの応答から翻訳済み行の配列を取り出します。
// 応答が配列そのものの場合と、オブジェクトで包まれている場合の両方に対応します。
func parseTranslatedRows(content string) ([]convert.Row, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("invalid json response: %w", err)
	}

	list, ok := raw.([]interface{})
	if !ok {
		obj, isObj := raw.(map[string]interface{})
		if !isObj {
			return nil, fmt.Errorf("expected json array, got %T", raw)
		}
		if inner, found := obj["input_data"].([]interface{}); found {
			list = inner
		} else {
			// キー順を固定して探索を決定的にする
			keys := make([]string, 0, len(obj))
			for key := range obj {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				if key == "rules" {
					continue
				}
				if inner, found := obj[key].([]interface{}); found {
					list = inner
					break
				}
			}
		}
		if list == nil {
			return nil, fmt.Errorf("no array found in response object")
		}
	}

	rows := make([]convert.Row, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected object at index %d, got %T", i, item)
		}
		row := make(convert.Row, len(entry))
		for key, value := range entry {
			row[key] = toString(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
