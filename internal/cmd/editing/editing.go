// Package editing parses editing service flags and launches the service.
package editing

import (
	"context"
	"flag"

	server "github.com/prosessportal/editing/internal/editing/app"
	entrypoint "github.com/prosessportal/editing/internal/platform/cmd"
)

// Config holds editing command configuration.
type Config struct {
	Port int `env:"PROSESSPORTAL_EDITING_PORT" envDefault:"8094"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The editing HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the editing HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunService(ctx, entrypoint.ServiceEditing, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
