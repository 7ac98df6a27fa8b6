// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Review struct {
		URL      string `json:"url"`
		Username string `json:"username"`
		Password string `json:"password"`
		// Request timeout in seconds
		Timeout int `json:"timeout"`
	} `json:"review"`

	Cache struct {
		Size            int `json:"size"`
		CompressMinSize int `json:"compress_min_size"`
		CompressLevel   int `json:"compress_level"`
	} `json:"cache"`

	// Workspace is the local checkout; empty means search upwards from the
	// working directory.
	Workspace string `json:"workspace"`

	Environment string `json:"environment"` // dev, prod
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

func Default() *Config {
	var c Config
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 7070
	c.Review.Timeout = 10
	c.Cache.Size = 256
	c.Cache.CompressMinSize = 4 * 1024
	c.Cache.CompressLevel = 2
	c.Environment = "dev"
	c.LogLevel = "info"
	return &c
}

// Load reads the JSON file at path over the defaults, then applies a .env
// file and REVVIEW_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			defer file.Close()
			if err := json.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", path, err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Host, "REVVIEW_HOST")
	setString(&c.Review.URL, "REVVIEW_URL")
	setString(&c.Review.Username, "REVVIEW_USERNAME")
	setString(&c.Review.Password, "REVVIEW_PASSWORD")
	setString(&c.Workspace, "REVVIEW_WORKSPACE")
	setString(&c.Environment, "REVVIEW_ENV")
	setString(&c.LogLevel, "REVVIEW_LOG_LEVEL")

	for key, dst := range map[string]*int{
		"REVVIEW_PORT":              &c.Server.Port,
		"REVVIEW_TIMEOUT":           &c.Review.Timeout,
		"REVVIEW_CACHE_SIZE":        &c.Cache.Size,
		"REVVIEW_COMPRESS_MIN_SIZE": &c.Cache.CompressMinSize,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
