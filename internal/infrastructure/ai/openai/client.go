// Package openai provides an OpenAI-compatible chat completions client. It
// also serves local Ollama models through Ollama's /v1 endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/outbound"
	"github.com/sommekat/sommelier/pkg/errors"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"

	OllamaBaseURL = "http://localhost:11434/v1"
	OllamaModel   = "llama3.2-vision"

	finishLength = "length"
)

// Config holds client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client implements outbound.Completer using the chat completions API
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ outbound.Completer = (*Client)(nil)

// NewClient creates a new OpenAI client. Without an API key it targets a
// local Ollama server.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIKey == "" {
		logger.Info("OpenAI API key not found, using local Ollama for completions")
		if cfg.BaseURL == "" {
			cfg.BaseURL = OllamaBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = OllamaModel
		}
		cfg.APIKey = "ollama" // ignored by Ollama
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("openai"),
	}
}

// OpenAI API structures
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message content is a plain string for the system role and a list of
// parts for the user role.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *File     `json:"file,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type File struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type ChatCompletionResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a single-turn chat completion.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (*outbound.Completion, error) {
	jsonBody, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewExternalServiceError("openai", fmt.Errorf("API request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewExternalServiceError("openai", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			detail = apiErr.Error.Message
		}
		return nil, errors.NewExternalServiceError("openai", fmt.Errorf("API error %d: %s", resp.StatusCode, errors.Excerpt(detail, 500))).
			WithMetadata("status", resp.StatusCode)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, errors.NewExternalServiceError("openai", fmt.Errorf("failed to unmarshal response: %w", err))
	}

	if len(chatResp.Choices) == 0 {
		return nil, errors.NewExternalServiceError("openai", fmt.Errorf("no response choices returned"))
	}
	choice := chatResp.Choices[0]

	c.logger.Info("OpenAI API call successful",
		zap.String("model", chatResp.Model),
		zap.String("finish_reason", choice.FinishReason),
		zap.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens),
		zap.Int("total_tokens", chatResp.Usage.TotalTokens),
	)

	return &outbound.Completion{
		Text:         choice.Message.Content,
		Truncated:    choice.FinishReason == finishLength,
		StopReason:   choice.FinishReason,
		Model:        chatResp.Model,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

func (c *Client) buildRequest(req outbound.CompletionRequest) ChatCompletionRequest {
	parts := make([]ContentPart, 0, len(req.Parts))
	docs := 0
	for _, part := range req.Parts {
		switch part.Kind {
		case pairing.ContentImage:
			parts = append(parts, ContentPart{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: dataURI(part.MimeType, part.Data)},
			})
		case pairing.ContentDocument:
			docs++
			parts = append(parts, ContentPart{
				Type: "file",
				File: &File{
					Filename: fmt.Sprintf("document-%d.pdf", docs),
					FileData: dataURI(part.MimeType, part.Data),
				},
			})
		default:
			parts = append(parts, ContentPart{Type: "text", Text: part.Text})
		}
	}

	// Prompt caching is automatic on this API, so CacheSystem needs no marker.
	return ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: parts},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
