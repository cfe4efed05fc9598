package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"swinglab/pkg/domain"
)

// ConfigPath is the default location Load falls back to when called with
// an empty path.
var ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                  string   `yaml:"port"`
	LogLevel              string   `yaml:"logLevel"`
	DatabaseURL           string   `yaml:"databaseURL"`
	MinioEndpoint         string   `yaml:"minioEndpoint"`
	MinioAccessKey        string   `yaml:"minioAccessKey"`
	MinioSecretKey        string   `yaml:"minioSecretKey"`
	MinioBucket           string   `yaml:"minioBucket"`
	MinioUseSSL           bool     `yaml:"minioUseSSL"`
	ReportBaseURL         string   `yaml:"reportBaseURL"`
	ReportAPIKey          string   `yaml:"reportApiKey"`
	ReportModel           string   `yaml:"reportModel"`
	IdentityJWKSURL       string   `yaml:"identityJwksUrl"`
	IdentityIssuer        string   `yaml:"identityIssuer"`
	IdentityAudience      string   `yaml:"identityAudience"`
	RedisAddr             string   `yaml:"redisAddr"`
	RedisPassword         string   `yaml:"redisPassword"`
	AnalyzePerMinute      int      `yaml:"analyzePerMinute"`
	MaxUploadBytes        int64    `yaml:"maxUploadBytes"`
	AllowedExtensions     []string `yaml:"allowedExtensions"`
	DefaultPlan           string   `yaml:"defaultPlan"`
	ShutdownGraceSeconds  int      `yaml:"shutdownGraceSeconds"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("SWINGLAB_REPORT_BASE_URL"); v != "" {
		cfg.ReportBaseURL = v
	}
	if v := os.Getenv("SWINGLAB_REPORT_API_KEY"); v != "" {
		cfg.ReportAPIKey = v
	}
	if v := os.Getenv("SWINGLAB_REPORT_MODEL"); v != "" {
		cfg.ReportModel = v
	}
	if v := os.Getenv("SWINGLAB_IDENTITY_JWKS_URL"); v != "" {
		cfg.IdentityJWKSURL = v
	}
	if v := os.Getenv("SWINGLAB_IDENTITY_ISSUER"); v != "" {
		cfg.IdentityIssuer = v
	}
	if v := os.Getenv("SWINGLAB_IDENTITY_AUDIENCE"); v != "" {
		cfg.IdentityAudience = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("COACH_ANALYZE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AnalyzePerMinute = n
		}
	}
	if v := os.Getenv("COACH_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("COACH_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	if v := os.Getenv("COACH_DEFAULT_PLAN"); v != "" {
		cfg.DefaultPlan = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml)")
	}
	if cfg.MinioAccessKey == "" {
		return errors.New("config: minioAccessKey is required (set in config.yaml)")
	}
	if cfg.MinioSecretKey == "" {
		return errors.New("config: minioSecretKey is required (set in config.yaml)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml)")
	}
	if cfg.ReportBaseURL == "" {
		return errors.New("config: reportBaseURL is required (set in config.yaml or SWINGLAB_REPORT_BASE_URL)")
	}
	if cfg.ReportAPIKey == "" {
		return errors.New("config: reportApiKey is required (set in config.yaml or SWINGLAB_REPORT_API_KEY)")
	}
	if cfg.ReportModel == "" {
		return errors.New("config: reportModel is required (set in config.yaml)")
	}
	if cfg.IdentityJWKSURL == "" {
		return errors.New("config: identityJwksUrl is required (set in config.yaml or SWINGLAB_IDENTITY_JWKS_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.AnalyzePerMinute < 0 {
		return errors.New("config: analyzePerMinute must be >= 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("config: maxUploadBytes must be > 0 (set in config.yaml or COACH_MAX_UPLOAD_BYTES)")
	}
	if cfg.DefaultPlan != "" {
		if _, ok := domain.ParsePlan(cfg.DefaultPlan); !ok {
			return fmt.Errorf("config: defaultPlan %q is not a known plan", cfg.DefaultPlan)
		}
	}
	if cfg.ShutdownGraceSeconds < 0 {
		return errors.New("config: shutdownGraceSeconds must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
