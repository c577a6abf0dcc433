package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig points at one model on one provider. Provider is "openai" for any
// OpenAI-compatible endpoint (OpenRouter included) or "ollama".
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

// RAGConfig configures chunking, retrieval and prompt budgeting.
type RAGConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	DefaultK      int `yaml:"default_k"`
	ContextBudget int `yaml:"context_budget"`
	TimeoutSecs   int `yaml:"timeout_secs"`
}

// StoreConfig selects the vector store backend. EncryptionKey makes an
// in-memory chromem store durable through encrypted snapshots under Path.
type StoreConfig struct {
	Type          string `yaml:"type"` // chromem | pgvector
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
	DSN           string `yaml:"dsn"`
	Password      string `yaml:"password"`
	VectorSize    int    `yaml:"vector_size"`
	Debug         bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	GenLLM   LLMConfig    `yaml:"gen_llm"`
	RAG      RAGConfig    `yaml:"rag"`
	Store    StoreConfig  `yaml:"store"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 150
	}
	if cfg.RAG.DefaultK == 0 {
		cfg.RAG.DefaultK = 5
	}
	if cfg.RAG.ContextBudget == 0 {
		cfg.RAG.ContextBudget = 12000
	}
	if cfg.RAG.TimeoutSecs == 0 {
		cfg.RAG.TimeoutSecs = 60
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "chromem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./chromemdb"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "documents"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = 768
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.GenLLM.Provider == "" {
		cfg.GenLLM.Provider = "openai"
	}
}
