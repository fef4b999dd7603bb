package profile

import (
	"os"
	"testing"
)

func TestProfileDefaults(t *testing.T) {
	clearEnvVars()

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"LLMProvider default", "openai", profile.LLMProvider},
		{"LLMBaseURL default", "https://api.openai.com/v1", profile.LLMBaseURL},
		{"ChatModel default", "gpt-4o-mini", profile.ChatModel},
		{"MultimodalModel default", "gpt-4o", profile.MultimodalModel},
		{"SearchModel default", "gpt-4o", profile.SearchModel},
		{"FallbackModel default", "gpt-4o-mini", profile.FallbackModel},
		{"AuxModel default", "gpt-4o-mini", profile.AuxModel},
		{"TrainingPassword default", "", profile.TrainingPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if profile.IsAIEnabled() {
		t.Error("IsAIEnabled should be false without an API key")
	}
	if profile.IsTrainingEnabled() {
		t.Error("IsTrainingEnabled should be false without a password")
	}
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) string
		expected string
	}{
		{
			name:     "API key",
			envVar:   "NEXUS_LLM_API_KEY",
			envValue: "test-key",
			field:    func(p *Profile) string { return p.LLMAPIKey },
			expected: "test-key",
		},
		{
			name:     "explicit base URL wins over provider default",
			envVar:   "NEXUS_LLM_BASE_URL",
			envValue: "https://example.com/v1",
			field:    func(p *Profile) string { return p.LLMBaseURL },
			expected: "https://example.com/v1",
		},
		{
			name:     "explicit chat model wins over provider default",
			envVar:   "NEXUS_CHAT_MODEL",
			envValue: "my-model",
			field:    func(p *Profile) string { return p.ChatModel },
			expected: "my-model",
		},
		{
			name:     "training password",
			envVar:   "NEXUS_TRAINING_PASSWORD",
			envValue: "secret",
			field:    func(p *Profile) string { return p.TrainingPassword },
			expected: "secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			os.Setenv(tt.envVar, tt.envValue)
			defer os.Unsetenv(tt.envVar)

			profile := &Profile{}
			profile.FromEnv()

			actual := tt.field(profile)
			if actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, actual)
			}
		})
	}
}

func TestUnknownProviderFallsBack(t *testing.T) {
	clearEnvVars()
	os.Setenv("NEXUS_LLM_PROVIDER", "bogus")
	defer os.Unsetenv("NEXUS_LLM_PROVIDER")

	profile := &Profile{}
	profile.FromEnv()

	if profile.LLMProvider != "openai" {
		t.Errorf("expected fallback to openai, got %q", profile.LLMProvider)
	}
}

func TestOpenRouterDefaults(t *testing.T) {
	clearEnvVars()
	os.Setenv("NEXUS_LLM_PROVIDER", "openrouter")
	defer os.Unsetenv("NEXUS_LLM_PROVIDER")

	profile := &Profile{}
	profile.FromEnv()

	if profile.LLMBaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("unexpected base URL %q", profile.LLMBaseURL)
	}
	if profile.ChatModel != "arcee-ai/trinity-large-preview:free" {
		t.Errorf("unexpected chat model %q", profile.ChatModel)
	}
}

func clearEnvVars() {
	suffixes := []string{
		"LLM_PROVIDER",
		"LLM_API_KEY",
		"LLM_BASE_URL",
		"CHAT_MODEL",
		"MULTIMODAL_MODEL",
		"SEARCH_MODEL",
		"FALLBACK_MODEL",
		"AUX_MODEL",
		"TRAINING_PASSWORD",
		"JWT_SECRET",
		"CHAT_RATE_LIMIT",
	}

	for _, suffix := range suffixes {
		os.Unsetenv("NEXUS_" + suffix)
	}
}
