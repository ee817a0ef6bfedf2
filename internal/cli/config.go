package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/projector/internal/server"
	"github.com/matzehuels/projector/pkg/cache"
	"github.com/matzehuels/projector/pkg/errors"
)

// Config is the CLI configuration file. Flags override it.
//
// Example:
//
//	[cache]
//	backend = "redis"
//	url = "redis://localhost:6379/0"
//	ttl = "48h"
//
//	[solver]
//	time_limit = "10s"
//
//	[server]
//	addr = ":8080"
type Config struct {
	Cache  cache.Config  `toml:"cache"`
	Solver SolverConfig  `toml:"solver"`
	Server server.Config `toml:"server"`
}

// SolverConfig holds defaults applied to problems that do not set them.
type SolverConfig struct {
	// TimeLimit bounds a solve when the problem file sets no limit.
	TimeLimit time.Duration `toml:"time_limit"`
}

func defaultConfig() Config {
	return Config{
		Cache: cache.Config{Backend: cache.BackendFile, TTL: cache.DefaultTTL},
	}
}

// configPath returns the default config file location.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// loadConfig reads the config at path. An empty path selects the default
// location, where a missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		p, err := configPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if explicit {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidPath, err, "open config %s", path)
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode config %s", path)
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = cache.DefaultTTL
	}
	return cfg, nil
}
