package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Matching MatchingConfig `yaml:"matching"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	APIKeys        []string `yaml:"api_keys"` // one per client; empty disables auth
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	// Backend is "insightface" (ONNX) or "dlib" (requires the dlib build tag).
	Backend            string  `yaml:"backend"`
	ModelsDir          string  `yaml:"models_dir"`
	ONNXLibrary        string  `yaml:"onnx_library"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	Sessions           int     `yaml:"sessions"` // model instances that can run in parallel
	IntraOpThreads     int     `yaml:"intra_op_threads"`
}

type MatchingConfig struct {
	// Threshold overrides the embedding version's default decision threshold
	// when set. Calibrate per deployment and model pair.
	Threshold   *float64 `yaml:"threshold"`
	SearchLimit int      `yaml:"search_limit"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	MetricsPort int `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file, applies environment variable overrides
// and fills defaults. An empty path skips the file. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Vision.Backend {
	case "insightface", "dlib":
	default:
		return fmt.Errorf("vision.backend: unknown backend %q", c.Vision.Backend)
	}
	if c.Vision.DetectionThreshold < 0 || c.Vision.DetectionThreshold > 1 {
		return fmt.Errorf("vision.detection_threshold: %v outside [0,1]", c.Vision.DetectionThreshold)
	}
	if t := c.Matching.Threshold; t != nil && *t < 0 {
		return fmt.Errorf("matching.threshold: must not be negative")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "faceid"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "faceid"
	}
	if cfg.Vision.Backend == "" {
		cfg.Vision.Backend = "insightface"
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.Sessions == 0 {
		cfg.Vision.Sessions = 2
	}
	if cfg.Matching.SearchLimit == 0 {
		cfg.Matching.SearchLimit = 5
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.MetricsPort == 0 {
		cfg.Worker.MetricsPort = 8082
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	envInt("FACEID_SERVER_PORT", &cfg.Server.Port)
	if v := os.Getenv("FACEID_API_KEY"); v != "" {
		cfg.Server.APIKeys = []string{v}
	}
	envString("FACEID_DB_HOST", &cfg.Database.Host)
	envInt("FACEID_DB_PORT", &cfg.Database.Port)
	envString("FACEID_DB_NAME", &cfg.Database.Name)
	envString("FACEID_DB_USER", &cfg.Database.User)
	envString("FACEID_DB_PASSWORD", &cfg.Database.Password)
	envString("FACEID_DB_SSLMODE", &cfg.Database.SSLMode)
	envString("FACEID_NATS_URL", &cfg.NATS.URL)
	envString("FACEID_MINIO_ENDPOINT", &cfg.MinIO.Endpoint)
	envString("FACEID_MINIO_ACCESS_KEY", &cfg.MinIO.AccessKey)
	envString("FACEID_MINIO_SECRET_KEY", &cfg.MinIO.SecretKey)
	envString("FACEID_MINIO_BUCKET", &cfg.MinIO.Bucket)
	envString("FACEID_VISION_BACKEND", &cfg.Vision.Backend)
	envString("FACEID_MODELS_DIR", &cfg.Vision.ModelsDir)
	envString("FACEID_ONNX_LIBRARY", &cfg.Vision.ONNXLibrary)
	envInt("FACEID_VISION_SESSIONS", &cfg.Vision.Sessions)
	envFloat("FACEID_DETECTION_THRESHOLD", &cfg.Vision.DetectionThreshold)
	if v := os.Getenv("FACEID_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.Threshold = &f
		}
	}
	envInt("FACEID_WORKER_CONCURRENCY", &cfg.Worker.Concurrency)
	envString("FACEID_LOG_LEVEL", &cfg.Logging.Level)
	envString("FACEID_LOG_FORMAT", &cfg.Logging.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
