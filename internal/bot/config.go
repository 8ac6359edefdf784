package bot

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type Config struct {
	Bot struct {
		Token string `toml:"token"`
		// telegram user id (as string) -> workflow identity of that approver
		Admins map[string]string `toml:"admins"`
	} `toml:"bot"`
	API struct {
		URL            string         `toml:"url"`
		IdentityHeader string         `toml:"identity_header"`
		TokenHeader    string         `toml:"token_header"`
		Headers        []HeaderConfig `toml:"headers"`
	} `toml:"api"`
	Auth struct {
		Enabled  bool   `toml:"enabled"`
		RedisURL string `toml:"redis_url"`
	} `toml:"auth"`
}

func ReadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load config: %v", err)
	}

	if cfg.API.IdentityHeader == "" {
		cfg.API.IdentityHeader = "X-Identity"
	}
	if cfg.API.TokenHeader == "" {
		cfg.API.TokenHeader = "Authorization"
	}

	return &cfg, nil
}
