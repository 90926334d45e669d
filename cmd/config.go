package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "LINKGRAPH"

type Config struct {
	Notion NotionConfig `mapstructure:"notion"`
	Graph  GraphConfig  `mapstructure:"graph"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Log    LogConfig    `mapstructure:"log"`
}

type NotionConfig struct {
	Token     string  `mapstructure:"token"`
	BaseURL   string  `mapstructure:"base_url"`
	Version   string  `mapstructure:"version"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second, <= 0 disables limiting
	Retries   uint    `mapstructure:"retries"`
}

type GraphConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ConnectedOnly bool          `mapstructure:"connected_only"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// setDefaults registers every key so that env overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.base_url", notion.DefaultBaseURL)
	v.SetDefault("notion.version", notion.DefaultVersion)
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("notion.retries", 3)
	v.SetDefault("graph.concurrency", 8)
	v.SetDefault("graph.timeout", 60*time.Second)
	v.SetDefault("graph.connected_only", false)
	v.SetDefault("http.addr", "")
	v.SetDefault("http.endpoint", "/mcp")
	v.SetDefault("log.mode", "dev")
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v.BindEnv("notion.token", envPrefix+"_NOTION_TOKEN", "NOTION_TOKEN")
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Notion.Token = strings.TrimSpace(cfg.Notion.Token)
	if cfg.HTTP.Endpoint == "" || !strings.HasPrefix(cfg.HTTP.Endpoint, "/") {
		return nil, fmt.Errorf("invalid http.endpoint %q: must start with /", cfg.HTTP.Endpoint)
	}
	if cfg.Notion.Retries == 0 {
		cfg.Notion.Retries = 1
	}
	return &cfg, nil
}

func (c *Config) Credentials() notion.Credentials {
	return notion.Credentials{Token: c.Notion.Token}
}

func (c *Config) newClient(logger *zap.Logger) *notion.Client {
	return notion.NewClient(
		notion.WithBaseURL(c.Notion.BaseURL),
		notion.WithVersion(c.Notion.Version),
		notion.WithRateLimit(c.Notion.RateLimit, int(c.Notion.RateLimit)),
		notion.WithRetries(c.Notion.Retries, 500*time.Millisecond),
		notion.WithLogger(logger.Named("notion")),
	)
}

func (c *Config) newService(logger *zap.Logger, reg prometheus.Registerer) service.Service {
	return service.NewService(service.Settings{
		Concurrency: c.Graph.Concurrency,
		Timeout:     c.Graph.Timeout,
		Registerer:  reg,
	}, c.newClient(logger), logger.Named("service"))
}
