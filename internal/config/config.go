package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
		APIKeys     []string `yaml:"apiKeys"`
		RateLimit   struct {
			Capacity        int     `yaml:"capacity"`
			RefillPerSecond float64 `yaml:"refillPerSecond"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | mysql | memory
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	PubSub struct {
		ProjectID string `yaml:"projectID"`
		Topic     string `yaml:"topic"`
	} `yaml:"pubsub"`

	Capture struct {
		DedupWindow        time.Duration `yaml:"dedupWindow"`
		OCRInterval        time.Duration `yaml:"ocrInterval"`
		SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
		QueueSize          int           `yaml:"queueSize"`

		// CameraCommand, when set, makes every session grab frames from a
		// camera attached to the server instead of accepting pushed frames.
		CameraCommand     []string `yaml:"cameraCommand"`
		CameraContentType string   `yaml:"cameraContentType"`
	} `yaml:"capture"`

	Import struct {
		ChunkSize  int           `yaml:"chunkSize"`
		ChunkDelay time.Duration `yaml:"chunkDelay"`
	} `yaml:"import"`
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// Load reads the YAML file at path, applies environment overrides and
// defaults, then validates. A missing file is not an error: the service can
// run from environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	return nil
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 50
	}
	if c.Server.RateLimit.RefillPerSecond == 0 {
		c.Server.RateLimit.RefillPerSecond = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case DriverMySQL:
			c.Database.Port = 3306
		default:
			c.Database.Port = 5432
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}

	if c.Capture.DedupWindow == 0 {
		c.Capture.DedupWindow = time.Second
	}
	if c.Capture.OCRInterval == 0 {
		c.Capture.OCRInterval = time.Second
	}
	if c.Capture.SessionIdleTimeout == 0 {
		c.Capture.SessionIdleTimeout = 5 * time.Minute
	}
	if c.Capture.QueueSize == 0 {
		c.Capture.QueueSize = 16
	}

	if c.Import.ChunkSize == 0 {
		c.Import.ChunkSize = 100
	}
	if c.Import.ChunkDelay == 0 {
		c.Import.ChunkDelay = 100 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Import.ChunkSize < 0 {
		return fmt.Errorf("import chunk size must be positive, got %d", c.Import.ChunkSize)
	}
	if c.Capture.QueueSize < 0 {
		return fmt.Errorf("capture queue size must be positive, got %d", c.Capture.QueueSize)
	}
	return nil
}

// PostgresDSN returns database.url when set, otherwise a lib/pq URL built
// from the individual fields.
func (c *Config) PostgresDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&time_zone=%%27%%2B00%%3A00%%27",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// MinioEnabled reports whether raw import archiving is configured.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != "" && c.Minio.BucketName != ""
}

// PubSubEnabled reports whether scan events are published.
func (c *Config) PubSubEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.Topic != ""
}
