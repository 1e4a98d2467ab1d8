// Package anthropic provides the Claude Messages API completion client
package anthropic

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
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-5-20250929"
	apiVersion     = "2023-06-01"

	stopMaxTokens = "max_tokens"
)

// Config holds client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client implements outbound.Completer using the Anthropic Messages API
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ outbound.Completer = (*Client)(nil)

// NewClient creates a new Anthropic client
func NewClient(cfg Config, logger *zap.Logger) *Client {
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
		logger: logger.Named("anthropic"),
	}
}

// Messages API structures
type messagesRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	System      []contentBlock `json:"system,omitempty"`
	Messages    []message      `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	Source       *blockSource  `json:"source,omitempty"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type blockSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a single-turn request and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (*outbound.Completion, error) {
	body := c.buildRequest(req)

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewExternalServiceError("anthropic", fmt.Errorf("API request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewExternalServiceError("anthropic", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		detail := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			detail = apiErr.Error.Type + ": " + apiErr.Error.Message
		}
		return nil, errors.NewExternalServiceError("anthropic", fmt.Errorf("API error %d: %s", resp.StatusCode, errors.Excerpt(detail, 500))).
			WithMetadata("status", resp.StatusCode)
	}

	var msg messagesResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, errors.NewExternalServiceError("anthropic", fmt.Errorf("failed to unmarshal response: %w", err))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.Info("Anthropic API call successful",
		zap.String("model", msg.Model),
		zap.String("stop_reason", msg.StopReason),
		zap.Int("input_tokens", msg.Usage.InputTokens),
		zap.Int("output_tokens", msg.Usage.OutputTokens),
	)

	return &outbound.Completion{
		Text:         text.String(),
		Truncated:    msg.StopReason == stopMaxTokens,
		StopReason:   msg.StopReason,
		Model:        msg.Model,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

func (c *Client) buildRequest(req outbound.CompletionRequest) messagesRequest {
	system := contentBlock{Type: "text", Text: req.System}
	if req.CacheSystem {
		system.CacheControl = &cacheControl{Type: "ephemeral"}
	}

	content := make([]contentBlock, 0, len(req.Parts))
	for _, part := range req.Parts {
		content = append(content, toBlock(part))
	}

	return messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      []contentBlock{system},
		Messages:    []message{{Role: "user", Content: content}},
	}
}

func toBlock(part pairing.ContentPart) contentBlock {
	switch part.Kind {
	case pairing.ContentImage:
		return contentBlock{Type: "image", Source: base64Source(part)}
	case pairing.ContentDocument:
		return contentBlock{Type: "document", Source: base64Source(part)}
	default:
		return contentBlock{Type: "text", Text: part.Text}
	}
}

func base64Source(part pairing.ContentPart) *blockSource {
	return &blockSource{
		Type:      "base64",
		MediaType: part.MimeType,
		Data:      base64.StdEncoding.EncodeToString(part.Data),
	}
}
