package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/types"
)

const (
	defaultModel      = "gpt-4o-mini"
	maxLLMRetries     = 2
	extractionSystem  = `You are a fact extraction engine. Extract discrete factual statements from the text. Respond with JSON only, no prose.`
	extractionExample = `{"facts": [{"text": "Satya Nadella is CEO of Microsoft", "valid_at": "2014-02-04T00:00:00Z", "confidence": 0.95, "entities": [{"name": "Satya Nadella", "type": "person", "role": "subject"}, {"name": "Microsoft", "type": "organization", "role": "object"}]}]}`
)

// chatClient is the slice of the OpenAI API the extractor uses, split out so
// tests can stub it.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIExtractor prompts an OpenAI-compatible model for structured fact
// extraction. Model output is repaired before parsing since LLMs routinely
// emit almost-JSON.
type OpenAIExtractor struct {
	client chatClient
	model  string
	logger *slog.Logger
}

// NewOpenAIExtractor builds an extractor from config. A custom base URL
// points the client at any OpenAI-compatible endpoint.
func NewOpenAIExtractor(cfg config.ExtractConfig, logger *slog.Logger) *OpenAIExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = defaultModel
	}
	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}
}

func (e *OpenAIExtractor) Name() string { return "llm" }

// llmFact mirrors the JSON shape the prompt asks for.
type llmFact struct {
	Text       string     `json:"text"`
	ValidAt    *time.Time `json:"valid_at"`
	InvalidAt  *time.Time `json:"invalid_at"`
	Confidence float64    `json:"confidence"`
	Entities   []struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Role string `json:"role"`
	} `json:"entities"`
}

type llmResponse struct {
	Facts []llmFact `json:"facts"`
}

// Extract prompts the model and parses its response into drafts.
func (e *OpenAIExtractor) Extract(ctx context.Context, sourceID, text string, refTime time.Time) ([]types.DraftFact, error) {
	if refTime.IsZero() {
		refTime = time.Now().UTC()
	}

	prompt := fmt.Sprintf(
		"Reference time: %s\n\nExtract facts from the following text. Use the reference time for statements without an explicit date. Respond in this JSON shape:\n%s\n\nText:\n%s",
		refTime.Format(time.RFC3339), extractionExample, text)

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystem},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	}

	var lastErr error
	for attempt := 0; attempt <= maxLLMRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			e.logger.Warn("retrying extraction request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if isRetriable(err) && attempt < maxLLMRetries {
				continue
			}
			return nil, fmt.Errorf("extraction completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("extraction returned no choices")
			continue
		}

		drafts, err := e.parse(resp.Choices[0].Message.Content, sourceID, refTime)
		if err != nil {
			lastErr = err
			continue
		}
		return drafts, nil
	}
	return nil, fmt.Errorf("extraction failed after %d attempts: %w", maxLLMRetries+1, lastErr)
}

func (e *OpenAIExtractor) parse(content, sourceID string, refTime time.Time) ([]types.DraftFact, error) {
	repaired, err := jsonrepair.JSONRepair(stripCodeFences(content))
	if err != nil {
		return nil, fmt.Errorf("repair model output: %w", err)
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	drafts := make([]types.DraftFact, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		validAt := refTime
		if f.ValidAt != nil {
			validAt = f.ValidAt.UTC()
		}
		confidence := f.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		draft := types.DraftFact{
			Text:       strings.TrimSpace(f.Text),
			ValidAt:    validAt,
			InvalidAt:  f.InvalidAt,
			Confidence: confidence,
			SourceID:   sourceID,
			Method:     e.Name(),
		}
		for _, ent := range f.Entities {
			if strings.TrimSpace(ent.Name) == "" {
				continue
			}
			draft.Entities = append(draft.Entities, types.DraftEntity{
				Name: strings.TrimSpace(ent.Name),
				Type: types.EntityType(ent.Type),
				Role: types.MentionRole(ent.Role),
			})
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func isRetriable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "rate_limit", "timeout", "connection", "503", "502", "429"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
