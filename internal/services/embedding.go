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

// Embedder turns note text into the retrieval vector the history store
// indexes and queries with. Qdrant does not embed server-side, so the
// process owns this step.
type Embedder interface {
	Embed(ctx context.Context, input string) ([]float32, error)
}

// NewEmbedderFromEnv follows the LLM provider switch: the local stack
// embeds through Ollama, the cloud stack through an OpenAI-compatible
// embeddings endpoint. EMBED_PROVIDER overrides.
func NewEmbedderFromEnv(log *logger.Logger) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(utils.GetEnv("EMBED_PROVIDER", "", log)))
	if provider == "" {
		provider = strings.ToLower(strings.TrimSpace(utils.GetEnv("LLM_PROVIDER", "", log)))
	}
	if provider == "ollama" {
		return NewOllamaEmbedder(log)
	}
	return NewOpenAIEmbedder(log)
}

// ---- OpenAI-compatible embeddings ----

type openAIEmbedder struct {
	log        *logger.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

func NewOpenAIEmbedder(log *logger.Logger) (Embedder, error) {
	apiKey := utils.GetEnv("OPENAI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log)
	model := utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log)
	return &openAIEmbedder{
		log:        log.With("service", "OpenAIEmbedder"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

type openAIEmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (e *openAIEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	reqBody := openAIEmbeddingsRequest{Model: e.model, Input: []string{input}}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embeddings call failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed openAIEmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}

	vec := make([]float32, len(parsed.Data[0].Embedding))
	for i, f := range parsed.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

// ---- Ollama embeddings ----

type ollamaEmbedder struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllamaEmbedder(log *logger.Logger) (Embedder, error) {
	baseURL := utils.GetEnv("OLLAMA_BASE_URL", "", log)
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL is not set")
	}
	model := utils.GetEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text", log)
	return &ollamaEmbedder{
		log:        log.With("service", "OllamaEmbedder"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

type ollamaEmbeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	reqBody := ollamaEmbeddingsRequest{Model: e.model, Prompt: input}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embeddings call failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response was empty")
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, f := range parsed.Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
