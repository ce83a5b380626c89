// Package config loads the YAML configuration shared by the zipgrid
// commands.
//
// ${VAR} references are expanded from the environment before decoding,
// and dotenv files can seed the environment first.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Data     Data     `yaml:"data"`
	Cache    Cache    `yaml:"cache"`
	Server   Server   `yaml:"server"`
	Registry Registry `yaml:"registry"`
	Log      Log      `yaml:"log"`
}

// Data selects where dataset documents are read from. A configured Bucket
// wins over Dir, and Dir over BaseURL.
type Data struct {
	BaseURL   string  `yaml:"base_url" validate:"omitempty,url"`
	Dir       string  `yaml:"dir"`
	Bucket    Bucket  `yaml:"bucket"`
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// Bucket configures an S3-compatible object store.
type Bucket struct {
	Endpoint  string `yaml:"endpoint" validate:"required_with=Name"`
	Name      string `yaml:"name" validate:"required_with=Endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key" validate:"required_with=AccessKey"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// Enabled reports whether a bucket is configured.
func (b Bucket) Enabled() bool {
	return b.Endpoint != "" && b.Name != ""
}

// Cache configures the document cache. RedisURL takes precedence over Dir.
type Cache struct {
	Dir      string        `yaml:"dir"`
	MaxBytes int64         `yaml:"max_bytes" validate:"gte=0"`
	RedisURL string        `yaml:"redis_url" validate:"omitempty,url"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Server configures the data server.
type Server struct {
	Addr            string        `yaml:"addr" validate:"required"`
	DataDir         string        `yaml:"data_dir"`
	StaticDir       string        `yaml:"static_dir"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// Registry configures access to OCI registries.
type Registry struct {
	PlainHTTP    bool   `yaml:"plain_http"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password" validate:"required_with=Username"`
	Token        string `yaml:"token" validate:"excluded_with=Username"`
	DockerConfig bool   `yaml:"docker_config"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			DataDir:         "data",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path over the defaults. Each
// envFile is loaded into the process environment first; variables that
// are already set are kept. An empty path returns the validated defaults.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("config: load env: %w", err)
		}
	}
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a configuration document from r over the defaults.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
