package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DOCINGEST_PORT.
const EnvPrefix = "DOCINGEST"

// Keys understood by Load. Flags and config files use the same names.
const (
	KeyPort                 = "port"
	KeyDataRoot             = "data_root"
	KeyAPIKey               = "api_key"
	KeyExtractTimeout       = "extract_timeout"
	KeyTargetTokens         = "target_tokens"
	KeyOverlapTokens        = "overlap_tokens"
	KeyMaxUploadBytes       = "max_upload_bytes"
	KeyPDFFallbackPdftotext = "pdf_fallback_pdftotext"
	KeyOutputEvidence       = "output_evidence"
	KeyJobTTL               = "job_ttl"
	KeyLogLevel             = "log_level"
)

type Config struct {
	Port     string
	DataRoot string

	// Auth; empty disables bearer checks.
	APIKey string

	// Worker supervision
	ExtractTimeout time.Duration
	// Artifact suffixes that prove a worker produced output.
	OutputEvidence []string

	// Chunking defaults
	TargetTokens  int
	OverlapTokens int

	// Upload limits
	MaxUploadBytes int64

	// Job retention; zero keeps jobs forever.
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8090")
	v.SetDefault(KeyDataRoot, "./data")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyExtractTimeout, "30m")
	v.SetDefault(KeyTargetTokens, 1000)
	v.SetDefault(KeyOverlapTokens, 120)
	v.SetDefault(KeyMaxUploadBytes, 200<<20) // 200MB
	v.SetDefault(KeyPDFFallbackPdftotext, true)
	v.SetDefault(KeyOutputEvidence, ".document.md,.document_structured.json")
	v.SetDefault(KeyJobTTL, "0s")
	v.SetDefault(KeyLogLevel, "info")
}

// New returns a viper instance with defaults and environment bindings.
// DATA_ROOT, API_KEY and PORT are accepted unprefixed as well.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyDataRoot, EnvPrefix+"_DATA_ROOT", "DATA_ROOT")
	_ = v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", "API_KEY")
	_ = v.BindEnv(KeyPort, EnvPrefix+"_PORT", "PORT")
	return v
}

// ReadFile merges a config file (yaml, json or toml by extension) into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load resolves a Config from v. It does not validate.
func Load(v *viper.Viper) Config {
	return Config{
		Port:                 v.GetString(KeyPort),
		DataRoot:             strings.TrimSpace(v.GetString(KeyDataRoot)),
		APIKey:               v.GetString(KeyAPIKey),
		ExtractTimeout:       v.GetDuration(KeyExtractTimeout),
		OutputEvidence:       splitList(v.Get(KeyOutputEvidence)),
		TargetTokens:         v.GetInt(KeyTargetTokens),
		OverlapTokens:        v.GetInt(KeyOverlapTokens),
		MaxUploadBytes:       v.GetInt64(KeyMaxUploadBytes),
		JobTTL:               v.GetDuration(KeyJobTTL),
		PDFFallbackPdftotext: v.GetBool(KeyPDFFallbackPdftotext),
		LogLevel:             v.GetString(KeyLogLevel),
	}
}

// splitList accepts a comma separated string or a list from a config file.
func splitList(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error
	if c.DataRoot == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyDataRoot))
	}
	if c.TargetTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyTargetTokens, c.TargetTokens))
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.TargetTokens {
		errs = append(errs, fmt.Errorf("%s must be in [0, %s), got %d", KeyOverlapTokens, KeyTargetTokens, c.OverlapTokens))
	}
	if c.ExtractTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyExtractTimeout))
	}
	if len(c.OutputEvidence) == 0 {
		errs = append(errs, fmt.Errorf("%s must list at least one suffix", KeyOutputEvidence))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyMaxUploadBytes))
	}
	if c.JobTTL < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyJobTTL))
	}
	return errors.Join(errs...)
}
