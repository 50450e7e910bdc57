package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds API server configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr         string
		Env          string
		AllowOrigins []string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}
	NASA struct {
		APIKey  string
		BaseURL string
		Timeout time.Duration
	}
	Log struct {
		Level string
	}
}

// Production reports whether error details must be hidden from responses.
func (c Config) Production() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// ClientConfig holds configuration of the terminal client.
type ClientConfig struct {
	API struct {
		BaseURL string
		Timeout time.Duration
	}
	Store struct {
		Path string
	}
	Archive struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

// Load reads server configuration from environment variables and optional config files.
func Load() (Config, error) {
	v := newViper("APOD", "config")

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.alloworigins", []string{"http://localhost:5173"})
	v.SetDefault("database.path", "data/apod.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", time.Hour)
	v.SetDefault("nasa.apikey", "")
	v.SetDefault("nasa.baseurl", "https://api.nasa.gov/planetary/apod")
	v.SetDefault("nasa.timeout", 15*time.Second)
	v.SetDefault("log.level", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.AllowOrigins = splitList(cfg.Server.AllowOrigins)

	return cfg, nil
}

// LoadClient reads client configuration. It shares the .env file with the server
// but uses its own prefix and config file name.
func LoadClient() (ClientConfig, error) {
	v := newViper("APOD_CLIENT", "client")

	v.SetDefault("api.baseurl", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("store.path", "data/client.db")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.keyprefix", "apod")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "warn")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("failed to unmarshal client config: %w", err)
	}

	return cfg, nil
}

func newViper(prefix, file string) *viper.Viper {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(file)
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file
	return v
}

// splitList accepts both list values and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// loadDotEnv copies KEY=VALUE pairs from ./.env into the environment without
// overriding variables that are already set.
func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
