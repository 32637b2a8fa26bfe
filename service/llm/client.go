// Package llm selects and constructs the model client consumed by the
// execution engine.  Two credential profiles are supported – OpenAI and
// Azure OpenAI – evaluated in that order; the first satisfiable profile
// wins.  When neither is satisfiable the validation failure names every
// missing field so misconfiguration is diagnosable at task creation, before
// any engine work starts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/viant/scy"
)

// Profile identifies a credential profile.
type Profile string

const (
	ProfileOpenAI Profile = "openai"
	ProfileAzure  Profile = "azure"
)

// Client is the opaque request/response capability handed to the engine.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Profile() Profile
}

// OpenAIConfig carries the OpenAI credential profile.  The API key can be
// given inline or as a scy secret resource URL.
type OpenAIConfig struct {
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey    string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIKeyURL string `json:"apiKeyURL,omitempty" yaml:"apiKeyURL,omitempty"`
	BaseURL   string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// AzureConfig carries the Azure OpenAI credential profile.
type AzureConfig struct {
	Endpoint   string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Deployment string `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	APIKey     string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIKeyURL  string `json:"apiKeyURL,omitempty" yaml:"apiKeyURL,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// Config holds both credential profiles.
type Config struct {
	OpenAI *OpenAIConfig `json:"openai,omitempty" yaml:"openai,omitempty"`
	Azure  *AzureConfig  `json:"azure,omitempty" yaml:"azure,omitempty"`
}

// WithEnvDefaults fills empty credential fields from conventional
// environment variables, mirroring how standalone deployments configure the
// client.
func (c *Config) WithEnvDefaults() *Config {
	if c.OpenAI == nil && os.Getenv("OPENAI_API_KEY") != "" {
		c.OpenAI = &OpenAIConfig{}
	}
	if c.OpenAI != nil {
		if c.OpenAI.APIKey == "" && c.OpenAI.APIKeyURL == "" {
			c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			c.OpenAI.Model = os.Getenv("OPENAI_MODEL")
		}
	}
	if c.Azure == nil && os.Getenv("AZURE_OPENAI_API_KEY") != "" {
		c.Azure = &AzureConfig{}
	}
	if c.Azure != nil {
		if c.Azure.APIKey == "" && c.Azure.APIKeyURL == "" {
			c.Azure.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if c.Azure.Endpoint == "" {
			c.Azure.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		if c.Azure.Deployment == "" {
			c.Azure.Deployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		}
	}
	return c
}

const defaultModel = "gpt-4o"

// New builds a client from the first satisfiable credential profile.
// Profiles are evaluated deterministically: OpenAI first, then Azure.
func New(ctx context.Context, config *Config) (Client, error) {
	if config == nil {
		config = &Config{}
	}
	secrets := scy.New()
	var reasons []string

	if config.OpenAI != nil {
		key, err := resolveKey(ctx, secrets, config.OpenAI.APIKey, config.OpenAI.APIKeyURL)
		if err != nil {
			return nil, err
		}
		if key != "" {
			model := config.OpenAI.Model
			if model == "" {
				model = defaultModel
			}
			baseURL := config.OpenAI.BaseURL
			if baseURL == "" {
				baseURL = "https://api.openai.com/v1"
			}
			return &chatClient{
				profile:  ProfileOpenAI,
				endpoint: baseURL + "/chat/completions",
				header:   http.Header{"Authorization": []string{"Bearer " + key}},
				model:    model,
			}, nil
		}
		reasons = append(reasons, "openai: missing apiKey")
	} else {
		reasons = append(reasons, "openai: profile not configured")
	}

	if config.Azure != nil {
		key, err := resolveKey(ctx, secrets, config.Azure.APIKey, config.Azure.APIKeyURL)
		if err != nil {
			return nil, err
		}
		var missing []string
		if key == "" {
			missing = append(missing, "apiKey")
		}
		if config.Azure.Endpoint == "" {
			missing = append(missing, "endpoint")
		}
		if config.Azure.Deployment == "" {
			missing = append(missing, "deployment")
		}
		if len(missing) == 0 {
			apiVersion := config.Azure.APIVersion
			if apiVersion == "" {
				apiVersion = "2024-02-01"
			}
			endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
				strings.TrimSuffix(config.Azure.Endpoint, "/"), config.Azure.Deployment, apiVersion)
			return &chatClient{
				profile:  ProfileAzure,
				endpoint: endpoint,
				header:   http.Header{"Api-Key": []string{key}},
				model:    config.Azure.Deployment,
			}, nil
		}
		reasons = append(reasons, fmt.Sprintf("azure: missing %s", strings.Join(missing, ", ")))
	} else {
		reasons = append(reasons, "azure: profile not configured")
	}

	return nil, fmt.Errorf("no model client credentials satisfied: %s", strings.Join(reasons, "; "))
}

func resolveKey(ctx context.Context, secrets *scy.Service, inline, sourceURL string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if sourceURL == "" {
		return "", nil
	}
	secret, err := secrets.Load(ctx, scy.NewResource(nil, sourceURL, ""))
	if err != nil {
		return "", fmt.Errorf("failed to load api key from %s: %w", sourceURL, err)
	}
	return strings.TrimSpace(secret.String()), nil
}

// chatClient speaks the chat-completions wire format shared by both
// profiles; only endpoint and auth header differ.
type chatClient struct {
	profile    Profile
	endpoint   string
	header     http.Header
	model      string
	httpClient *http.Client
}

func (c *chatClient) Profile() Profile { return c.profile }

func (c *chatClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0,
	})
	if err != nil {
		return "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	request.Header = c.header.Clone()
	request.Header.Set("Content-Type", "application/json")

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	response, err := httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model backend returned %d: %s", response.StatusCode, string(data))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
