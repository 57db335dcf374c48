// Package llm provides pluggable text-generation providers for the
// recommendation synthesis step.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

// Generation temperature for both providers; synthesis wants mostly
// deterministic output.
const temperature = 0.3

// Provider is a text-generation backend.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// OllamaProvider talks to a local Ollama server.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(model, baseURL string, log *zap.Logger) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log,
	}
}

// IsConfigured checks that Ollama is reachable and serves the model.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	o.log.Debug("ollama model not found", zap.String("model", o.Model))
	return false
}

// Generate sends a chat prompt to Ollama.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", faults.Wrap(faults.MalformedRecord, err, "encode ollama request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", faults.Wrap(faults.UpstreamUnavailable, err, "build ollama request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", faults.Wrap(faults.UpstreamUnavailable, err, "ollama chat")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", faults.New(faults.UpstreamUnavailable, "ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", faults.Wrap(faults.MalformedRecord, err, "decode ollama response")
	}

	return result.Message.Content, nil
}

// OpenAIProvider uses the OpenAI chat completions API.
type OpenAIProvider struct {
	Model  string
	apiKey string
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider. An empty key leaves it
// unconfigured.
func NewOpenAIProvider(model, apiKey string) *OpenAIProvider {
	p := &OpenAIProvider{Model: model, apiKey: apiKey}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

// IsConfigured reports whether an API key is set.
func (o *OpenAIProvider) IsConfigured() bool { return o.apiKey != "" }

// Generate sends a chat prompt to OpenAI.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.client == nil {
		return "", faults.New(faults.MissingCredential, "openai api key not set")
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", faults.Wrap(faults.UpstreamUnavailable, err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", faults.New(faults.MalformedRecord, "no choices in openai response")
	}
	return resp.Choices[0].Message.Content, nil
}

// CreateProvider picks a provider from configuration: Ollama when requested
// and reachable, then OpenAI, else nil (callers fall back to deterministic
// selection).
func CreateProvider(provider, model, ollamaURL, openaiModel, apiKey string, log *zap.Logger) Provider {
	if strings.ToLower(provider) == "ollama" {
		p := NewOllamaProvider(model, ollamaURL, log)
		if p.IsConfigured() {
			log.Info("using ollama", zap.String("model", model))
			return p
		}
		log.Info("ollama not available, trying openai fallback")
	}

	p := NewOpenAIProvider(openaiModel, apiKey)
	if p.IsConfigured() {
		log.Info("using openai", zap.String("model", openaiModel))
		return p
	}

	log.Warn("no llm provider available, synthesis will use deterministic selection")
	return nil
}
