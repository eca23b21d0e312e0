// Package llm abstracts the chat-completion providers used for loot
// decisions behind a single Provider interface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"lootcouncil/internal/httpx"
)

// Decision replies are short; 500 tokens covers three names and a rationale.
const maxCompletionTokens = 500

// Provider sends one system+user prompt pair and returns the reply text.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewProvider builds the provider named in configuration.
func NewProvider(provider, model, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return &AnthropicProvider{APIKey: apiKey, Model: model}, nil
	case "openai":
		return &OpenAIProvider{APIKey: apiKey, Model: model}, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	APIKey string
	Model  string
}

func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(p.APIKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.Model),
		MaxTokens: maxCompletionTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", classifyAnthropicError(err)
	}

	log.Printf("llm anthropic response tokens_in=%d tokens_out=%d",
		message.Usage.InputTokens, message.Usage.OutputTokens)
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &APIError{Kind: KindOther, Provider: "anthropic",
		Err: errors.New("no text content in response")}
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{Kind: kindFromStatus(apiErr.StatusCode), Provider: "anthropic", Err: err}
	}
	return &APIError{Kind: KindConnection, Provider: "anthropic", Err: err}
}

// OpenAIProvider calls the OpenAI chat-completions API over plain HTTP.
type OpenAIProvider struct {
	APIKey  string
	Model   string
	BaseURL string // test override
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := openAIRequest{
		Model: p.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: maxCompletionTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := p.BaseURL
	if url == "" {
		url = "https://api.openai.com"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := httpx.Client().Do(req)
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", &APIError{Kind: KindConnection, Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Kind: KindConnection, Provider: "openai", Err: err}
	}
	if resp.StatusCode != 200 {
		return "", &APIError{
			Kind:     kindFromStatus(resp.StatusCode),
			Provider: "openai",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if openAIResp.Error != nil {
		return "", &APIError{Kind: KindOther, Provider: "openai",
			Err: errors.New(openAIResp.Error.Message)}
	}
	if len(openAIResp.Choices) == 0 {
		return "", &APIError{Kind: KindOther, Provider: "openai",
			Err: errors.New("no choices in response")}
	}

	content := openAIResp.Choices[0].Message.Content
	log.Printf("llm openai response size=%d", len(content))
	return content, nil
}
