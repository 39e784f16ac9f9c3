package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/storage"
	"github.com/xraph/jobstore/store/memory"
)

// logJob is the built-in job that writes its message to the log.
func logJob(logger *slog.Logger) *job.Definition[string] {
	return job.NewDefinition("", "log", func(_ context.Context, message string) error {
		logger.Info("log job", slog.String("message", message))
		return nil
	})
}

// registerBuiltins adds the jobs every server can run.
func registerBuiltins(reg *job.Registry, logger *slog.Logger) {
	job.RegisterDefinition(reg, logJob(logger))
}

// MemoryDBPath selects the in-memory store instead of a database file.
const MemoryDBPath = ":memory:"

// openStorage opens the configured database.
func openStorage(cfg Config, logger *slog.Logger, opts ...storage.Option) (*storage.Storage, error) {
	opts = append([]storage.Option{
		storage.WithConfig(cfg.Storage()),
		storage.WithLogger(logger),
	}, opts...)
	if cfg.DBPath == MemoryDBPath {
		return storage.New(memory.New(), opts...)
	}
	st, err := storage.Open(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	return st, nil
}

// loadConfig reads the bound configuration and builds the logger.
func loadConfig() (Config, *slog.Logger) {
	cfg := Load(viper.GetViper())
	return cfg, buildLogger(cfg.LogLevel)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
