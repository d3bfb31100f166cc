package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingAPIKey is returned when neither GOOGLE_API_KEY nor
// GOOGLE_GENAI_API_KEY is set.
var ErrMissingAPIKey = errors.New("missing API key: set GOOGLE_API_KEY or GOOGLE_GENAI_API_KEY")

// Credentials are read from the process environment.
type Credentials struct {
	GoogleAPIKey string `envconfig:"GOOGLE_API_KEY"`
	GenAIAPIKey  string `envconfig:"GOOGLE_GENAI_API_KEY"`
	UseVertexAI  string `envconfig:"GOOGLE_GENAI_USE_VERTEXAI"`
}

// LoadCredentials reads credentials from the environment.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return c, fmt.Errorf("failed to read credentials from environment: %w", err)
	}
	return c, nil
}

// APIKey returns GOOGLE_API_KEY, falling back to GOOGLE_GENAI_API_KEY.
func (c Credentials) APIKey() (string, error) {
	if c.GoogleAPIKey != "" {
		return c.GoogleAPIKey, nil
	}
	if c.GenAIAPIKey != "" {
		return c.GenAIAPIKey, nil
	}
	return "", ErrMissingAPIKey
}

// Apply exports the resolved key as GOOGLE_API_KEY and forces the Gemini
// API backend by setting GOOGLE_GENAI_USE_VERTEXAI=false.
func (c Credentials) Apply() (string, error) {
	key, err := c.APIKey()
	if err != nil {
		return "", err
	}
	if err := os.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "false"); err != nil {
		return "", fmt.Errorf("failed to set GOOGLE_GENAI_USE_VERTEXAI: %w", err)
	}
	if c.GoogleAPIKey == "" {
		if err := os.Setenv("GOOGLE_API_KEY", key); err != nil {
			return "", fmt.Errorf("failed to set GOOGLE_API_KEY: %w", err)
		}
	}
	return key, nil
}
