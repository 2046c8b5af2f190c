package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yeoul-labs/alimguard-backend/internal/pkg/ctxutil"
	"github.com/yeoul-labs/alimguard-backend/internal/pkg/httpx"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/envutil"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the language-model client used by the classifier, the
// semantic validator and the template generator.
type Client interface {
	// Complete sends the message list and returns the raw assistant text.
	// An empty model falls back to the configured default.
	Complete(ctx context.Context, messages []Message, model string) (string, error)

	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ServiceError covers transport and API-level failures of the model endpoint.
type ServiceError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "openai service error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("openai service error: %v", e.Cause)
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ServiceError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// ParseError means the model answered but the output was not the JSON the
// caller asked for. Callers must treat this distinctly from ServiceError.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "openai parse error"
	}
	return fmt.Sprintf("model output not parseable: %v; raw=%s", e.Cause, e.Raw)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type client struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	model       string
	embedModel  string
	temperature float64
	maxTokens   int
	maxRetries  int
	httpClient  *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(envutil.String("OPENAI_BASE_URL", "https://api.openai.com"), "/")
	model := envutil.String("OPENAI_MODEL", "gpt-4o-mini")
	embedModel := envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small")
	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 30)
	maxRetries := envutil.Int("OPENAI_MAX_RETRIES", 3)

	return &client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		embedModel:  embedModel,
		temperature: 0.3,
		maxTokens:   1000,
		maxRetries:  maxRetries,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.model
	}

	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var resp chatResponse
	if err := c.do(ctx, "POST", "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{StatusCode: 200, Body: "no choices in response"}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &ServiceError{StatusCode: 200, Body: "empty completion"}
	}
	return text, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embeddingsRequest{Model: c.embedModel, Input: clean}
	var resp embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = vec
		}
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, &ServiceError{StatusCode: 200, Body: fmt.Sprintf("embedding missing for index %d", i)}
		}
	}
	return out, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &ServiceError{Cause: err}
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, &ServiceError{Cause: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &ServiceError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return &ServiceError{Cause: ctx.Err()}
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return &ServiceError{StatusCode: resp.StatusCode, Body: string(raw), Cause: uErr}
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return &ServiceError{Cause: ctx.Err()}
		}
		backoff *= 2
	}

	return errors.New("unreachable retry loop")
}

// ExtractJSON strips markdown code fences the model sometimes wraps around
// JSON output and returns the inner text. It does not validate the JSON.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	start := 0
	if strings.HasPrefix(lines[0], "```") {
		start = 1
	}
	end := len(lines)
	for i := len(lines) - 1; i >= start; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// DecodeJSON extracts and unmarshals a JSON object from model output.
// Failures are reported as *ParseError so callers can distinguish a bad
// answer from a failed call.
func DecodeJSON(text string, out any) error {
	cleaned := ExtractJSON(text)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &ParseError{Raw: cleaned, Cause: err}
	}
	return nil
}
