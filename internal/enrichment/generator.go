package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("content enrichment disabled")

const defaultModel = openai.GPT4oMini

// Generator produces prose fields for an order's form data.
type Generator interface {
	Generate(ctx context.Context, st enums.ServiceType, form models.FormData) (map[string]any, error)
}

type prompt struct {
	system string
	keys   []string
}

var prompts = map[enums.ServiceKind]prompt{
	enums.ServiceKindCVWriting: {
		system: "You write concise, factual resume content for job seekers in Ethiopia. " +
			"Use only facts present in the input. Reply with a JSON object with keys " +
			`"professional_summary" (2 short paragraphs separated by a blank line) and ` +
			`"key_skills" (an array of at most 10 short skill names).`,
		keys: []string{"professional_summary", "key_skills"},
	},
	enums.ServiceKindCoverLetter: {
		system: "You write professional cover letters. Use only facts present in the input. " +
			`Reply with a JSON object with the key "letter_body": 3 or 4 paragraphs separated by blank lines, ` +
			"without greeting or signature.",
		keys: []string{"letter_body"},
	},
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator asks a chat completion model for a JSON object of prose fields.
type OpenAIGenerator struct {
	client chatClient
	model  string
}

func NewOpenAIGenerator(cfg config.OpenAIConfig) *OpenAIGenerator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &OpenAIGenerator{}
	}
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, st enums.ServiceType, form models.FormData) (map[string]any, error) {
	if g == nil || g.client == nil {
		return nil, ErrDisabled
	}
	p, ok := prompts[st.Kind]
	if !ok {
		return nil, fmt.Errorf("no enrichment prompt for %s", st)
	}

	input, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.system},
			{Role: openai.ChatMessageRoleUser, Content: string(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.4,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai api error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	return parseFields(resp.Choices[0].Message.Content, p.keys)
}

// parseFields keeps only the expected keys with non-empty values.
func parseFields(content string, keys []string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("decode generated content: %w", err)
	}
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out[key] = s
			}
		case []any:
			if len(v) > 0 {
				out[key] = v
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("generated content has no usable fields")
	}
	return out, nil
}
