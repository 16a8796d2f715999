package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/utils"
)

// Large-model completions are slow; both backends share one generous
// request timeout.
const llmRequestTimeout = 300 * time.Second

// LLMClient is the text-completion capability. Exactly one backend is
// active per process; callers never branch on which.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// ProviderError covers transport failures, non-success statuses and
// backend misconfiguration from either LLM backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "llm provider error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm provider %s failed (status=%d): %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("llm provider %s failed: %v", e.Provider, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewLLMClientFromEnv selects the backend once at startup from
// LLM_PROVIDER ("groq" | "ollama", default "groq").
func NewLLMClientFromEnv(log *logger.Logger) (LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(utils.GetEnv("LLM_PROVIDER", "", log)))
	if provider == "" {
		provider = "groq"
	}
	switch provider {
	case "ollama":
		return NewOllamaClient(log)
	case "groq":
		return NewGroqClient(log)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q; expected groq or ollama", provider)
	}
}

// ---- Groq (cloud chat completions) ----

type groqClient struct {
	log        *logger.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

func NewGroqClient(log *logger.Logger) (LLMClient, error) {
	apiKey := utils.GetEnv("GROQ_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is not set")
	}
	baseURL := utils.GetEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1", log)
	model := utils.GetEnv("GROQ_MODEL", "llama3-70b-8192", log)
	return &groqClient{
		log:        log.With("service", "GroqClient"),
		httpClient: &http.Client{Timeout: llmRequestTimeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

func (c *groqClient) Provider() string { return "groq" }

type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *groqClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := groqChatRequest{
		Model:       c.model,
		Messages:    []groqMessage{{Role: "user", Content: prompt}},
		Temperature: 0.0,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", &ProviderError{Provider: "groq", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", &ProviderError{Provider: "groq", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "groq", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: "groq", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("Groq call failed", "status", resp.StatusCode, "body", string(raw))
		return "", &ProviderError{
			Provider:   "groq",
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unexpected response status"),
		}
	}

	var parsed groqChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Provider: "groq", Cause: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: "groq", Cause: fmt.Errorf("response contained no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

// ---- Ollama (local generation endpoint) ----

type ollamaClient struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllamaClient(log *logger.Logger) (LLMClient, error) {
	baseURL := utils.GetEnv("OLLAMA_BASE_URL", "", log)
	model := utils.GetEnv("OLLAMA_MODEL", "", log)
	if baseURL == "" || model == "" {
		return nil, fmt.Errorf("ollama is not configured: OLLAMA_BASE_URL and OLLAMA_MODEL are required")
	}
	return &ollamaClient{
		log:        log.With("service", "OllamaClient"),
		httpClient: &http.Client{Timeout: llmRequestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

func (c *ollamaClient) Provider() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
		NumCtx      int     `json:"num_ctx"`
	} `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (c *ollamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	}
	reqBody.Options.Temperature = 0.0
	reqBody.Options.NumCtx = 2048

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", &ProviderError{Provider: "ollama", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", &buf)
	if err != nil {
		return "", &ProviderError{Provider: "ollama", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "ollama", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Error("Ollama call failed", "status", resp.StatusCode, "body", string(body))
		return "", &ProviderError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unexpected response status"),
		}
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ProviderError{Provider: "ollama", Cause: fmt.Errorf("decode response: %w", err)}
	}
	return parsed.Response, nil
}
