package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/natefinch/atomic"
)

// ChainConfig holds the defaults used to build a chain for `run`.
type ChainConfig struct {
	MatrixPath          string    `json:"matrix_path"`
	Size                int       `json:"random_size"`
	InitialState        *int      `json:"initial_state"`
	InitialDistribution []float64 `json:"initial_distribution"`
	ConstructionSeed    *uint64   `json:"construction_seed"`
	ProcessSeed         *uint64   `json:"process_seed"`
	ResetMode           string    `json:"reset_mode"`
	Steps               int       `json:"steps"`
	Record              bool      `json:"record"`
}

// Config is the top-level configuration struct.
type Config struct {
	LogLevel     string       `json:"log_level"`
	DatabasePath string       `json:"database_path"`
	Color        string       `json:"color"`
	Chain        *ChainConfig `json:"chain_config"`
}

// DefaultChainConfig creates a chain configuration with default values.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		Size:      4,
		ResetMode: markov.ResetFull.String(),
		Steps:     10,
		Record:    true,
	}
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		DatabasePath: "./markovtool.db",
		Color:        "auto",
		Chain:        DefaultChainConfig(),
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The defaults are still usable.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Chain == nil {
		config.Chain = DefaultChainConfig()
	}
	return config, nil
}

// Options translates the chain configuration into constructor options.
func (c *ChainConfig) Options() ([]markov.Option, error) {
	opts := []markov.Option{
		markov.WithConstructionSeed(markov.SeedFromPointer(c.ConstructionSeed)),
		markov.WithProcessSeed(markov.SeedFromPointer(c.ProcessSeed)),
		markov.WithRecording(c.Record),
	}

	switch {
	case c.InitialState != nil && len(c.InitialDistribution) > 0:
		return nil, fmt.Errorf("initial_state and initial_distribution are mutually exclusive")
	case c.InitialState != nil:
		opts = append(opts, markov.WithInitialState(markov.FixedState(*c.InitialState)))
	case len(c.InitialDistribution) > 0:
		opts = append(opts, markov.WithInitialState(markov.DistributedState(c.InitialDistribution)))
	}

	mode, err := markov.ParseResetMode(c.ResetMode)
	if err != nil {
		return nil, err
	}
	return append(opts, markov.WithResetMode(mode)), nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
