// Package config loads server configuration from an optional .env file and
// DOCTALK_* environment variables layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Blob       BlobConfig
	Extract    ExtractConfig
	LLM        LLMConfig
	Auth       AuthConfig
	Pagination PaginationConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// BlobConfig selects the document byte store. Provider is "local" or "minio";
// the MinIO fields are only read for the latter.
type BlobConfig struct {
	Provider  string
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ExtractConfig struct {
	Languages   string
	DPI         int
	PageWorkers int
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AuthConfig struct {
	PasswordPepper string
}

// PaginationConfig bounds message-history page sizes. DefaultLimit is used
// when a request carries no limit; MaxLimit caps whatever the client asks for.
type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Blob: BlobConfig{
			Provider: "local",
			LocalDir: filepath.Join(dataDir, "blobs"),
			Bucket:   "doctalk-documents",
		},
		Extract: ExtractConfig{
			Languages:   "eng+por",
			DPI:         600,
			PageWorkers: 4,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Pagination: PaginationConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".doctalk")
	}
	return ".doctalk"
}

// Load reads configuration from an optional .env file in the working
// directory, then applies DOCTALK_* environment variable overrides. A missing
// .env file is not an error; variables already set in the environment win
// over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: LLM API key. Set it via environment variable DOCTALK_LLM_API_KEY or a .env file")
	}
	if cfg.Blob.Provider == "minio" && (cfg.Blob.Endpoint == "" || cfg.Blob.AccessKey == "" || cfg.Blob.SecretKey == "") {
		return Config{}, fmt.Errorf("blob provider is minio but DOCTALK_MINIO_ENDPOINT, DOCTALK_MINIO_ACCESS_KEY or DOCTALK_MINIO_SECRET_KEY is unset")
	}

	return cfg, nil
}
