package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	// Both providers (openai, openrouter) and any compatible endpoint use the same config
	LLMProvider string // Provider identifier: openai, openrouter
	LLMAPIKey   string // LLM API key
	LLMBaseURL  string // LLM base URL (optional, has default per provider)
	LLMTimeout  int    // LLM request timeout in seconds (default: 120)

	// Chat model roster. Empty values fall back to provider defaults.
	ChatModel       string // default text model
	MultimodalModel string // model used when media attachments are present
	SearchModel     string // model used when web search is requested
	FallbackModel   string // substitute model when the primary call fails
	AuxModel        string // cheap model for suggestions and titles

	// Training instruction management
	TrainingPassword string // gate for the training endpoints; empty disables them

	// JWT session signing
	JWTSecret string

	// Other configurations
	Mode        string
	DSN         string
	Driver      string
	Version     string
	InstanceURL string
	Addr        string
	Data        string
	Port        int

	// Requests per second allowed per caller on the chat endpoint
	ChatRateLimit float64
}

// Provider default configurations for LLM.
// Used when NEXUS_LLM_BASE_URL or a model slot is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL         string
	ChatModel       string
	MultimodalModel string
	SearchModel     string
	FallbackModel   string
	AuxModel        string
}{
	"openai": {
		BaseURL:         "https://api.openai.com/v1",
		ChatModel:       "gpt-4o-mini",
		MultimodalModel: "gpt-4o",
		SearchModel:     "gpt-4o",
		FallbackModel:   "gpt-4o-mini",
		AuxModel:        "gpt-4o-mini",
	},
	"openrouter": {
		BaseURL:         "https://openrouter.ai/api/v1",
		ChatModel:       "arcee-ai/trinity-large-preview:free",
		MultimodalModel: "gpt-4o",
		SearchModel:     "gpt-4o",
		FallbackModel:   "gpt-4o-mini",
		AuxModel:        "gpt-4o-mini",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

// IsTrainingEnabled returns true if the training password gate is configured.
func (p *Profile) IsTrainingEnabled() bool {
	return p.TrainingPassword != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("NEXUS_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("NEXUS_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("NEXUS_LLM_BASE_URL", "")
	p.LLMTimeout = getEnvOrDefaultInt("NEXUS_LLM_TIMEOUT_SECONDS", 120)

	p.ChatModel = getEnvOrDefault("NEXUS_CHAT_MODEL", "")
	p.MultimodalModel = getEnvOrDefault("NEXUS_MULTIMODAL_MODEL", "")
	p.SearchModel = getEnvOrDefault("NEXUS_SEARCH_MODEL", "")
	p.FallbackModel = getEnvOrDefault("NEXUS_FALLBACK_MODEL", "")
	p.AuxModel = getEnvOrDefault("NEXUS_AUX_MODEL", "")

	p.TrainingPassword = getEnvOrDefault("NEXUS_TRAINING_PASSWORD", "")
	p.JWTSecret = getEnvOrDefault("NEXUS_JWT_SECRET", "")
	p.ChatRateLimit = getEnvOrDefaultFloat("NEXUS_CHAT_RATE_LIMIT", 1)

	// Validate and apply provider defaults if not explicitly set
	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
			p.LLMProvider = "openai"
		}
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.ChatModel == "" {
			p.ChatModel = defaults.ChatModel
		}
		if p.MultimodalModel == "" {
			p.MultimodalModel = defaults.MultimodalModel
		}
		if p.SearchModel == "" {
			p.SearchModel = defaults.SearchModel
		}
		if p.FallbackModel == "" {
			p.FallbackModel = defaults.FallbackModel
		}
		if p.AuxModel == "" {
			p.AuxModel = defaults.AuxModel
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "nexus")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/nexus"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("nexus_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile) + "?_loc=auto"
	} else if p.Driver == "sqlite" && p.DSN != "" {
		if !strings.Contains(p.DSN, "_loc=") {
			separator := "?"
			if strings.Contains(p.DSN, "?") {
				separator = "&"
			}
			p.DSN += separator + "_loc=auto"
		}
	}

	return nil
}
