package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hericlibong/Infograph2Data/internal/common"
)

// Inferencer is the narrow vision-model contract: one image, one prompt, one
// JSON-bearing text response. Implementations classify transport and provider
// failures as remote errors.
type Inferencer interface {
	Infer(ctx context.Context, imagePath string, prompt string, maxTokens int) (string, error)
	Configured() bool
}

// ClientConfig configures the OpenAI-compatible vision client.
type ClientConfig struct {
	APIKey    string
	BaseURL   string // default https://api.openai.com/v1
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// Client calls an OpenAI-compatible chat/completions endpoint with an image
// attachment.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// Configured reports whether an API key that could plausibly work is set.
func (c *Client) Configured() bool {
	return len(c.cfg.APIKey) > 10
}

// Infer sends the prompt plus the image to the model and returns the raw
// message content. Transport failures, non-2xx statuses and empty responses
// all surface as remote errors.
func (c *Client) Infer(ctx context.Context, imagePath string, prompt string, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", common.NewError(common.KindUnsupported, "vision model not configured, set OPENAI_API_KEY")
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", imagePath, err)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		imageMIMEType(imagePath), base64.StdEncoding.EncodeToString(imageData))

	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{
						"type": "image_url",
						"image_url": map[string]any{
							"url":    dataURL,
							"detail": "high",
						},
					},
				},
			},
		},
	}

	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("vision.infer.http_error",
			"model", c.cfg.Model,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", common.WrapError(common.KindRemote, err, "vision model call failed")
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", common.WrapError(common.KindRemote, err, "decode vision response")
	}
	if len(cc.Choices) == 0 {
		return "", common.NewError(common.KindRemote, "no choices in vision response")
	}

	c.log.Info("vision.infer.ok",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"image_bytes", len(imageData),
		"elapsed_ms", time.Since(start).Milliseconds())
	return cc.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("vision response body close error", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision read body (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, respBody)
	}
	return respBody, nil
}

func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// StripCodeFences removes a markdown code fence wrapper from a model
// response, returning the inner payload ready for JSON parsing.
func StripCodeFences(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	return strings.TrimSpace(content)
}
