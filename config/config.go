// Package config loads the abcistated configuration file.
package config

import (
	"net"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/blockberries/abcistate/diffdb"
	"github.com/blockberries/abcistate/log"
)

// Config is the daemon configuration. Relative paths are resolved
// against Home.
type Config struct {
	// Home is the node's root directory.
	Home string `toml:"home"`
	// ListenAddress is the gRPC listen address for the consensus engine.
	ListenAddress string `toml:"listen_address"`
	// MetricsAddress serves /metrics when non-empty.
	MetricsAddress string `toml:"metrics_address"`
	// GenesisFile holds the genesis app state as JSON. Optional.
	GenesisFile string `toml:"genesis_file"`
	// SnapshotDir holds the state snapshot files.
	SnapshotDir string `toml:"snapshot_dir"`
	// DiffQueueSize bounds the background diff backlog.
	DiffQueueSize int `toml:"diff_queue_size"`

	Log    log.Config    `toml:"log"`
	DiffDB diffdb.Config `toml:"diffdb"`
}

// Validate is a config validation function.
type Validate func(Config) error

var (
	// Default is the default config
	Default = Config{
		Home:           ".abcistate",
		ListenAddress:  "127.0.0.1:26658",
		MetricsAddress: "127.0.0.1:26660",
		SnapshotDir:    "data",
		DiffQueueSize:  64,
		Log:            log.DefaultConfig,
		DiffDB:         diffdb.DefaultConfig,
	}

	// ErrInvalidCfg indicates the invalid config value
	ErrInvalidCfg = errors.New("invalid config value")

	// Validates is the collection config validation functions
	Validates = []Validate{
		ValidateAddresses,
		ValidateDiffDB,
		ValidateQueue,
	}
)

// Load reads the TOML file at path over the defaults. ${VAR} references
// in the file are expanded from the environment. An empty path yields
// the defaults. The returned config is resolved and validated.
func Load(path string, validates ...Validate) (Config, error) {
	cfg := Default
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to read config")
		}
		md, err := toml.Decode(os.ExpandEnv(string(raw)), &cfg)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to decode config")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, errors.Wrapf(ErrInvalidCfg, "unknown keys %v", undecoded)
		}
	}
	cfg = cfg.Resolve()
	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// Write encodes cfg as TOML to path, creating parent directories.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to encode config")
	}
	return f.Close()
}

// Resolve returns a copy with every relative path joined to Home.
func (c Config) Resolve() Config {
	c.SnapshotDir = c.under(c.SnapshotDir)
	c.GenesisFile = c.under(c.GenesisFile)
	if c.DiffDB.Backend != diffdb.BackendMemory {
		c.DiffDB.Path = c.under(c.DiffDB.Path)
	}
	return c
}

func (c Config) under(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

// ValidateAddresses validates the listen addresses
func ValidateAddresses(cfg Config) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return errors.Wrapf(ErrInvalidCfg, "listen address %q: %v", cfg.ListenAddress, err)
	}
	if cfg.MetricsAddress == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.MetricsAddress); err != nil {
		return errors.Wrapf(ErrInvalidCfg, "metrics address %q: %v", cfg.MetricsAddress, err)
	}
	return nil
}

// ValidateDiffDB validates the diff database configs
func ValidateDiffDB(cfg Config) error {
	switch cfg.DiffDB.Backend {
	case diffdb.BackendMemory:
		return nil
	case diffdb.BackendBolt, diffdb.BackendBadger, diffdb.BackendLevelDB, diffdb.BackendPebble:
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown diffdb backend %q", cfg.DiffDB.Backend)
	}
	if cfg.DiffDB.Path == "" {
		return errors.Wrap(ErrInvalidCfg, "diffdb path is required for persistent backends")
	}
	return nil
}

// ValidateQueue validates the diff queue and snapshot settings
func ValidateQueue(cfg Config) error {
	if cfg.DiffQueueSize <= 0 {
		return errors.Wrap(ErrInvalidCfg, "diff queue size should be greater than 0")
	}
	if cfg.SnapshotDir == "" {
		return errors.Wrap(ErrInvalidCfg, "snapshot dir is required")
	}
	return nil
}

// DoNotValidate skips validation.
func DoNotValidate(Config) error { return nil }
