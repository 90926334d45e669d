package cmd

import (
	"strings"

	"go.uber.org/zap"
)

// newLogger builds a production logger for "prod" and a development logger
// otherwise. Both write to stderr, which keeps stdout free for stdio MCP.
func newLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
