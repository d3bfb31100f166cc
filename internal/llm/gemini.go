// Package llm provides the language models used by the routing topologies:
// the Gemini API model, an offline keyword model, and a guard that adds
// rate limiting and circuit breaking around either of them.
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// MockModelName selects the offline keyword model.
const MockModelName = "mock"

// NewGemini creates a Gemini model on the Gemini API backend.
func NewGemini(ctx context.Context, modelName, apiKey string) (model.LLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is empty")
	}
	m, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model %q: %w", modelName, err)
	}
	return m, nil
}
