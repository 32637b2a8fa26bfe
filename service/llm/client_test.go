package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfileSelection(t *testing.T) {
	testCases := []struct {
		description string
		config      *Config
		expected    Profile
		expectError string
	}{
		{
			description: "openai profile",
			config:      &Config{OpenAI: &OpenAIConfig{APIKey: "sk-test"}},
			expected:    ProfileOpenAI,
		},
		{
			description: "openai wins over azure",
			config: &Config{
				OpenAI: &OpenAIConfig{APIKey: "sk-test"},
				Azure:  &AzureConfig{APIKey: "az-test", Endpoint: "https://acme.openai.azure.com", Deployment: "gpt"},
			},
			expected: ProfileOpenAI,
		},
		{
			description: "azure fallback",
			config: &Config{
				Azure: &AzureConfig{APIKey: "az-test", Endpoint: "https://acme.openai.azure.com", Deployment: "gpt"},
			},
			expected: ProfileAzure,
		},
		{
			description: "no profiles",
			config:      &Config{},
			expectError: "openai: profile not configured; azure: profile not configured",
		},
		{
			description: "incomplete profiles name every missing field",
			config: &Config{
				OpenAI: &OpenAIConfig{Model: "gpt-4o"},
				Azure:  &AzureConfig{APIKey: "az-test"},
			},
			expectError: "openai: missing apiKey; azure: missing endpoint, deployment",
		},
	}

	for _, testCase := range testCases {
		client, err := New(context.Background(), testCase.config)
		if testCase.expectError != "" {
			require.Error(t, err, testCase.description)
			assert.Contains(t, err.Error(), testCase.expectError, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expected, client.Profile(), testCase.description)
	}
}

func TestWithEnvDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	config := (&Config{}).WithEnvDefaults()
	require.NotNil(t, config.OpenAI)
	assert.Equal(t, "sk-env", config.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", config.OpenAI.Model)

	// Explicit settings are not overridden.
	config = (&Config{OpenAI: &OpenAIConfig{APIKey: "sk-explicit"}}).WithEnvDefaults()
	assert.Equal(t, "sk-explicit", config.OpenAI.APIKey)
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/chat/completions", request.URL.Path)
		assert.Equal(t, "Bearer sk-test", request.Header.Get("Authorization"))
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"choices":[{"message":{"content":"click the button"}}]}`))
	}))
	defer server.Close()

	client, err := New(context.Background(), &Config{
		OpenAI: &OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL},
	})
	require.NoError(t, err)

	response, err := client.Generate(context.Background(), "what next?")
	require.NoError(t, err)
	assert.Equal(t, "click the button", response)
}

func TestGenerateBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := New(context.Background(), &Config{
		OpenAI: &OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL},
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "what next?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
