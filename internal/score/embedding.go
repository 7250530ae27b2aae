package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// Embeddings scores every document by cosine similarity to query, mapped
// into (0, 1] so no document is excluded by accident. The result is meant to
// be handed to a crammer as explicit scores.
func Embeddings(ctx context.Context, e Embedder, query string, k knowledge.Knowledge) (knowledge.Scores, error) {
	q, err := e.Embed(ctx, query)
	if err != nil {
		return knowledge.Scores{}, fmt.Errorf("embed query: %w", err)
	}
	w := make(map[string]float64, k.Len())
	for p, content := range k.All() {
		v, err := e.Embed(ctx, p+"\n"+content)
		if err != nil {
			return knowledge.Scores{}, fmt.Errorf("embed %s: %w", p, err)
		}
		w[p] = math.Max((CosineSimilarity(q, v)+1)/2, 1e-6)
	}
	return knowledge.ScoresOf(w), nil
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// OllamaEmbedder uses a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
// nomic-embed-text has 768 dimensions, all-minilm 384.
func NewOllamaEmbedder(model string) *OllamaEmbedder {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	dims := 768
	if model == "all-minilm" {
		dims = 384
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	req := map[string]string{"model": e.model, "prompt": text}
	if err := postJSON(ctx, e.client, e.baseURL+"/api/embeddings", "", req, &result); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return result.Embedding, nil
}

func (e *OllamaEmbedder) Dims() int { return e.dims }

// OpenAIEmbedder uses any OpenAI-compatible embedding API.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	req := map[string]string{"input": text, "model": e.model}
	if err := postJSON(ctx, e.client, e.baseURL+"/embeddings", e.apiKey, req, &result); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned")
	}
	return result.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

func postJSON(ctx context.Context, client *http.Client, url, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// EmbedderFromEnv creates an embedder from environment variables, or nil
// when embeddings are disabled.
//
//	AGENT_CONTEXT_EMBED_PROVIDER: "ollama" | "openai" | "" (disabled)
//	AGENT_CONTEXT_EMBED_MODEL:    model name
//	AGENT_CONTEXT_EMBED_URL:      base URL override
//	OPENAI_API_KEY:               for the openai provider
func EmbedderFromEnv() Embedder {
	model := os.Getenv("AGENT_CONTEXT_EMBED_MODEL")
	switch os.Getenv("AGENT_CONTEXT_EMBED_PROVIDER") {
	case "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model)
	case "openai":
		return NewOpenAIEmbedder(os.Getenv("AGENT_CONTEXT_EMBED_URL"), os.Getenv("OPENAI_API_KEY"), model, 0)
	default:
		return nil
	}
}
