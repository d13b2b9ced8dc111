package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		APIKey      string `yaml:"apiKey"`
		Model       string `yaml:"model"`
		BaseURL     string `yaml:"baseURL"`
		DisplayName string `yaml:"displayName"`
		Strategy    string `yaml:"strategy"` // direct | prefetched | delegated
	} `yaml:"ai"`

	Search struct {
		APIKey         string `yaml:"apiKey"`
		BaseURL        string `yaml:"baseURL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
		MaxResults     int    `yaml:"maxResults"`
	} `yaml:"search"`

	Research struct {
		Mode                string `yaml:"mode"` // full_article | summary_only
		FetchTimeoutSeconds int    `yaml:"fetchTimeoutSeconds"`
	} `yaml:"research"`

	Rules struct {
		Dir string `yaml:"dir"`
	} `yaml:"rules"`

	Auth struct {
		// tenant -> api key; empty map disables auth
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml; kredensial bisa dioverride lewat env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("SERPER_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	return &cfg, nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the lib/pq connection string
func (c *Config) PostgresDSN() string {
	sslmode := c.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslmode,
	)
}

// SearchTimeout with default
func (c *Config) SearchTimeout() time.Duration {
	if c.Search.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// FetchTimeout with default
func (c *Config) FetchTimeout() time.Duration {
	if c.Research.FetchTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.Research.FetchTimeoutSeconds) * time.Second
}
