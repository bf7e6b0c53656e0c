package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
	"go.zipstore/internal/codec"
	"go.zipstore/internal/logger"
)

type Config struct {
	Addr      string `yaml:"addr"`
	Home      string `yaml:"home"`
	DataDir   string `yaml:"data_dir"`
	LogDir    string `yaml:"log_dir"`
	UserFile  string `yaml:"user_file"`
	LogLevel  string `yaml:"log_level"`
	EnableTLS bool   `yaml:"enable_tls"`
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`

	Store StoreConfig `yaml:"store"`
}

// StoreConfig holds the per-database tunables
type StoreConfig struct {
	PageSize          int    `yaml:"page_size"`
	HostPageSize      int    `yaml:"host_page_size"`
	Codec             string `yaml:"codec"`
	JournalMode       string `yaml:"journal_mode"`
	MaxFree           int    `yaml:"max_free"`
	MaxFrag           int    `yaml:"max_frag"`
	IntegrityCheck    bool   `yaml:"integrity_check"`
	Sync              bool   `yaml:"sync"`
	WALAutoCheckpoint int    `yaml:"wal_autocheckpoint"`
}

const (
	JournalRollback = "rollback"
	JournalWAL      = "wal"
)

func DefaultStore() StoreConfig {
	return StoreConfig{
		PageSize:          4096,
		HostPageSize:      4096,
		Codec:             "zlib",
		JournalMode:       JournalRollback,
		MaxFree:           100,
		MaxFrag:           200,
		Sync:              true,
		WALAutoCheckpoint: 1000,
	}
}

func LoadConfig(homeOverride, configOverride string) (*Config, error) {
	paths, err := ResolvePaths(homeOverride, configOverride)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:     "127.0.0.1:57084",
		Home:     paths.Home,
		DataDir:  paths.DataDir,
		LogDir:   paths.LogDir,
		UserFile: paths.UserFile,
		LogLevel: "info",
		Store:    DefaultStore(),
	}

	if f, err := os.Open(paths.Config); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("LoadConfig: %s: %w", paths.Config, err)
		}
	}

	// Relative directories in the file are taken from home
	cfg.DataDir = paths.under(cfg.DataDir)
	cfg.LogDir = paths.under(cfg.LogDir)
	cfg.UserFile = paths.under(cfg.UserFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.LogDir, 0o755)

	return cfg, nil
}

func (cfg *Config) Validate() error {
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.EnableTLS && (cfg.TLSCert == "" || cfg.TLSKey == "") {
		return fmt.Errorf("enable_tls requires tls_cert and tls_key")
	}
	return cfg.Store.Validate()
}

func (sc *StoreConfig) Validate() error {
	if !validPageSize(sc.PageSize) {
		return fmt.Errorf("store.page_size %d is not a power of two between 512 and 65536", sc.PageSize)
	}
	if !validPageSize(sc.HostPageSize) {
		return fmt.Errorf("store.host_page_size %d is not a power of two between 512 and 65536", sc.HostPageSize)
	}
	if _, err := codec.Lookup(sc.Codec); err != nil {
		return err
	}
	if sc.JournalMode != JournalRollback && sc.JournalMode != JournalWAL {
		return fmt.Errorf("store.journal_mode must be %q or %q, got %q", JournalRollback, JournalWAL, sc.JournalMode)
	}
	if sc.MaxFree < 0 || sc.MaxFrag < 0 {
		return fmt.Errorf("store.max_free and store.max_frag must not be negative")
	}
	if sc.WALAutoCheckpoint < 0 {
		return fmt.Errorf("store.wal_autocheckpoint must not be negative")
	}
	return nil
}

func validPageSize(n int) bool {
	return n >= 512 && n <= 65536 && n&(n-1) == 0
}

// Where a named database and its log live
func (cfg *Config) DatabasePath(name string) string {
	return filepath.Join(cfg.DataDir, name, name+".zdb")
}

func (cfg *Config) LogPath(name string) string {
	return filepath.Join(cfg.LogDir, name+".log")
}
