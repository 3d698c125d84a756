package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "DOCTALK_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "DOCTALK_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "DOCTALK_BLOB_PROVIDER", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Blob.Provider = v.(string) },
	},
	{
		env: "DOCTALK_BLOB_LOCAL_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Blob.LocalDir = v.(string) },
	},
	{
		env: "DOCTALK_MINIO_ENDPOINT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Blob.Endpoint = v.(string) },
	},
	{
		env: "DOCTALK_MINIO_ACCESS_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Blob.AccessKey = v.(string) },
	},
	{
		env: "DOCTALK_MINIO_SECRET_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Blob.SecretKey = v.(string) },
	},
	{
		env: "DOCTALK_MINIO_BUCKET", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Blob.Bucket = v.(string) },
	},
	{
		env: "DOCTALK_MINIO_USE_SSL", typ: kBool,
		apply: func(cfg *Config, v any) { cfg.Blob.UseSSL = v.(bool) },
	},
	{
		env: "DOCTALK_OCR_LANGUAGES", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Extract.Languages = v.(string) },
	},
	{
		env: "DOCTALK_OCR_DPI", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Extract.DPI = v.(int) },
	},
	{
		env: "DOCTALK_OCR_PAGE_WORKERS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Extract.PageWorkers = v.(int) },
	},
	{
		env: "DOCTALK_LLM_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
	},
	{
		env: "DOCTALK_LLM_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
	},
	{
		env: "DOCTALK_LLM_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
	},
	{
		env: "DOCTALK_PASSWORD_PEPPER", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Auth.PasswordPepper = v.(string) },
	},
	{
		env: "DOCTALK_PAGINATION_DEFAULT_LIMIT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Pagination.DefaultLimit = v.(int) },
	},
	{
		env: "DOCTALK_PAGINATION_MAX_LIMIT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Pagination.MaxLimit = v.(int) },
	},
	{
		env: "DOCTALK_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
