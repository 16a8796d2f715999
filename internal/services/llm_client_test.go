package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soapify/soapify-backend/internal/logger"
)

func TestNewLLMClientFromEnvSelectsProvider(t *testing.T) {
	log := logger.NewNop()

	t.Run("defaults to groq", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("GROQ_API_KEY", "test-key")
		client, err := NewLLMClientFromEnv(log)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Provider() != "groq" {
			t.Fatalf("expected groq, got %s", client.Provider())
		}
	})

	t.Run("ollama", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "ollama")
		t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
		t.Setenv("OLLAMA_MODEL", "llama3")
		client, err := NewLLMClientFromEnv(log)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Provider() != "ollama" {
			t.Fatalf("expected ollama, got %s", client.Provider())
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "claude")
		if _, err := NewLLMClientFromEnv(log); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})

	t.Run("groq without key", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "groq")
		t.Setenv("GROQ_API_KEY", "")
		if _, err := NewGroqClient(log); err == nil {
			t.Fatal("expected error without GROQ_API_KEY")
		}
	})

	t.Run("ollama without model", func(t *testing.T) {
		t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
		t.Setenv("OLLAMA_MODEL", "")
		if _, err := NewOllamaClient(log); err == nil {
			t.Fatal("expected error without OLLAMA_MODEL")
		}
	})
}

func TestGroqClientComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": validSOAP}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("GROQ_BASE_URL", srv.URL)
	client, err := NewGroqClient(logger.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	out, err := client.Complete(context.Background(), "generate a note")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != validSOAP {
		t.Fatalf("unexpected output %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["temperature"] != 0.0 {
		t.Fatalf("expected zero temperature, got %v", gotBody["temperature"])
	}
}

func TestGroqClientCompleteNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("GROQ_BASE_URL", srv.URL)
	client, err := NewGroqClient(logger.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Complete(context.Background(), "prompt")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", provErr.StatusCode)
	}
}

func TestOllamaClientComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"response": validSOAP})
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "llama3")
	client, err := NewOllamaClient(logger.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	out, err := client.Complete(context.Background(), "generate a note")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != validSOAP {
		t.Fatalf("unexpected output %q", out)
	}
	if gotBody["stream"] != false {
		t.Fatal("streaming must be disabled")
	}
	opts, _ := gotBody["options"].(map[string]any)
	if opts["num_ctx"] != 2048.0 {
		t.Fatalf("expected num_ctx 2048, got %v", opts["num_ctx"])
	}
}
