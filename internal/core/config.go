package core

import (
	"strings"
	"time"

	"github.com/gookit/config/v2"
	"github.com/gookit/config/v2/yaml"

	"github.com/timada-org/skald/pkg/api"
	"github.com/timada-org/skald/pkg/client"
)

type Server struct {
	Addr        string `config:"addr"`
	JwksURL     string `config:"jwks_url"`
	Database    string `config:"database"`
	TurnDelayMs int    `config:"turn_delay_ms"`
}

type Stream struct {
	BaseURL              string `config:"base_url"`
	Token                string `config:"token"`
	ReconnectDelayMs     int    `config:"reconnect_delay_ms"`
	MaxReconnectAttempts int    `config:"max_reconnect_attempts"`
}

type Config struct {
	Server Server `config:"server"`
	Stream Stream `config:"stream"`
}

func NewConfig(path string) (*Config, error) {
	var appConfig Config

	config.WithOptions(func(opt *config.Options) {
		opt.ParseEnv = true
		opt.DecoderConfig.TagName = "config"
	})

	config.AddDriver(yaml.Driver)

	if err := config.LoadFiles(path); err != nil {
		return nil, err
	}

	if err := config.LoadExists(strings.Replace(path, ".yml", ".local.yml", 1)); err != nil {
		return nil, err
	}

	if err := config.BindStruct("", &appConfig); err != nil {
		return nil, err
	}

	return &appConfig, nil
}

// StreamOptions converts the stream section for pkg/client. Zero
// values fall back to the client defaults.
func (c *Config) StreamOptions() client.ClientOptions {
	return client.ClientOptions{
		BaseURL:              c.Stream.BaseURL,
		Token:                c.Stream.Token,
		ReconnectDelay:       time.Duration(c.Stream.ReconnectDelayMs) * time.Millisecond,
		MaxReconnectAttempts: c.Stream.MaxReconnectAttempts,
	}
}

func (c *Config) APIOptions() api.ClientOptions {
	return api.ClientOptions{
		BaseURL: c.Stream.BaseURL,
		Token:   c.Stream.Token,
	}
}
