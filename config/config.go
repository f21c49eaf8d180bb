package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

type LLMConfig struct {
	Provider string
	Model    string
	// TitleModel is used for the narrow title-extraction call. Empty means Model.
	TitleModel string
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	LLM        LLMConfig
	Embeddings EmbeddingConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	PostgresDSN string
	SQLitePath  string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	HTTPAddr        string
	DocumentDir     string
	DocumentBaseURL string

	ReachTimeout  time.Duration
	FetchTimeout  time.Duration
	MaxFetchBytes int64

	PromptPolicyFile string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		LLM: LLMConfig{
			Provider:   strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			Model:      getEnv("LLM_MODEL", "gpt-4o"),
			TitleModel: getEnv("LLM_TITLE_MODEL", ""),
		},
		Embeddings: EmbeddingConfig{
			Provider:  strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", "")),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "grant-drafter.db"),
		Neo4jURI:         getEnv("NEO4J_URI", ""),
		Neo4jUser:        getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:        getEnv("NEO4J_PASSWORD", "password"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DocumentDir:      getEnv("DOCUMENT_DIR", "documents"),
		DocumentBaseURL:  getEnv("DOCUMENT_BASE_URL", "/documents"),
		ReachTimeout:     getEnvDuration("REACH_TIMEOUT", 3*time.Second),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		MaxFetchBytes:    int64(getEnvInt("MAX_FETCH_BYTES", 20<<20)),
		PromptPolicyFile: getEnv("PROMPT_POLICY_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
