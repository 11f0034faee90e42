package classification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"progressreport/normalization"
)

// RemoteConfig параметры удаленного классификатора (OpenAI-совместимый API)
type RemoteConfig struct {
	URL               string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
}

// RemoteClassifier классификация через языковую модель. Может отказать в любой момент,
// поэтому в цепочке всегда стоит перед классификатором по правилам.
type RemoteClassifier struct {
	cfg        RemoteConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewRemoteClassifier создает удаленный классификатор
func NewRemoteClassifier(cfg RemoteConfig) *RemoteClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}

	return &RemoteClassifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:     slog.Default().With("component", "remote_classifier"),
	}
}

// Name имя классификатора
func (c *RemoteClassifier) Name() string {
	return "remote"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You group construction progress counts by work category. ` +
	`Allowed categories: %s. Reply with JSON only: ` +
	`{"towers":[{"tower":"T1","categories":[{"category":"Civil Works","activities":[{"activity":"Concreting","count":3}]}]}],"unmapped":["label"]}`

// Categorize отправляет количества модели и проверяет структуру ответа
func (c *RemoteClassifier) Categorize(ctx context.Context, in CategorizationInput) (*Categorization, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categorization input: %w", err)
	}

	categories := make([]string, len(normalization.KnownCategories))
	for i, cat := range normalization.KnownCategories {
		categories[i] = string(cat)
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, strings.Join(categories, ", "))},
			{Role: "user", Content: string(payload)},
		},
	}

	start := time.Now()
	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := parseCategorization(content)
	if err != nil {
		return nil, err
	}
	if err := result.Validate(in); err != nil {
		return nil, err
	}

	c.logger.Info("Remote categorization completed",
		"towers", len(result.Towers),
		"duration", time.Since(start))
	return result, nil
}

// complete выполняет запрос с повторами при 429 и 5xx
func (c *RemoteClassifier) complete(ctx context.Context, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.URL, "/") + "/chat/completions"
	delay := c.cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("Retrying remote categorization",
				"attempt", attempt,
				"max_retries", c.cfg.MaxRetries,
				"delay", delay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, c.cfg.MaxDelay)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
				delay = min(retryAfter, c.cfg.MaxDelay)
			}
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("API returned status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return "", fmt.Errorf("%w: API returned status %d: %s", ErrRemoteUnavailable, resp.StatusCode, truncate(string(respBody), 200))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("%w: failed to decode response: %v", ErrInvalidCategorization, err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("%w: API error: %s", ErrRemoteUnavailable, parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices in response", ErrInvalidCategorization)
		}
		return parsed.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: all retry attempts failed: %v", ErrRemoteUnavailable, lastErr)
}

// parseCategorization убирает обрамление markdown и разбирает JSON ответа модели
func parseCategorization(content string) (*Categorization, error) {
	content = stripCodeFence(content)

	var result Categorization
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCategorization, err)
	}
	return &result, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		// Первая строка после ``` может быть указанием языка
		if lang := strings.TrimSpace(content[:nl]); !strings.ContainsAny(lang, "{[") {
			content = content[nl+1:]
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
