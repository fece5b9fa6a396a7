package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderAssemblyAI = "assemblyai"
	ProviderVosk       = "vosk"

	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug, release, test
	} `yaml:"server"`
	Transcription struct {
		Provider     string        `yaml:"provider"` // "assemblyai" or "vosk"
		PollInterval time.Duration `yaml:"poll_interval"`
		PollTimeout  time.Duration `yaml:"poll_timeout"`
		UploadDir    string        `yaml:"upload_dir"`
	} `yaml:"transcription"`
	AssemblyAI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"assemblyai"`
	Vosk struct {
		ServerURL  string `yaml:"server_url"`
		SampleRate int    `yaml:"sample_rate"`
	} `yaml:"vosk"`
	Storage struct {
		Backend string `yaml:"backend"` // "file" or "redis"
		Dir     string `yaml:"dir"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Jobs struct {
		EventLogDir string `yaml:"event_log_dir"`
	} `yaml:"jobs"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	c := &Config{}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 3000
	c.Server.Mode = "release"
	c.Transcription.Provider = ProviderAssemblyAI
	c.Transcription.PollInterval = 3 * time.Second
	c.Transcription.PollTimeout = 10 * time.Minute
	c.Transcription.UploadDir = "uploads"
	c.AssemblyAI.BaseURL = "https://api.assemblyai.com/v2"
	c.Vosk.ServerURL = "ws://localhost:2700"
	c.Vosk.SampleRate = 16000
	c.Storage.Backend = BackendFile
	c.Storage.Dir = "transcripts"
	c.Storage.Redis.Addr = "localhost:6379"
	c.Storage.Redis.Prefix = "teamsync:transcript:"
	c.Log.Mode = "dev"
	return c
}

// Load reads the YAML file on top of Default and applies environment
// overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	config := Default()

	if filename != "" {
		file, err := os.Open(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config %s: %w", filename, err)
		default:
			defer file.Close()
			decoder := yaml.NewDecoder(file)
			if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parse config %s: %w", filename, err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := strings.TrimSpace(os.Getenv("ASSEMBLYAI_API_KEY")); v != "" {
		c.AssemblyAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		c.Log.Mode = v
	}
	return nil
}

// Validate checks the values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Transcription.Provider {
	case ProviderAssemblyAI:
		if c.AssemblyAI.APIKey == "" {
			return fmt.Errorf("assemblyai.api_key is required (or set ASSEMBLYAI_API_KEY)")
		}
	case ProviderVosk:
		if c.Vosk.ServerURL == "" {
			return fmt.Errorf("vosk.server_url is required")
		}
	default:
		return fmt.Errorf("unknown transcription provider: %s", c.Transcription.Provider)
	}
	if c.Transcription.PollInterval <= 0 {
		return fmt.Errorf("transcription.poll_interval must be positive")
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
