package config

import (
	"os"
	"path/filepath"
)

const (
	envHome   = "ZIPSTORE_HOME"
	envConfig = "ZIPSTORE_CONFIG"
)

// Paths is the on-disk layout under the zipstore home:
//
//	config.yaml  users.json  data/<db>/<db>.zdb  log/<db>.log
type Paths struct {
	Home     string
	Config   string
	UserFile string
	DataDir  string
	LogDir   string
}

// ResolvePaths picks the home directory from the override, $ZIPSTORE_HOME,
// $XDG_DATA_HOME/zipstore or ~/.local/share/zipstore, in that order. The
// config file is the override, $ZIPSTORE_CONFIG or config.yaml in home.
func ResolvePaths(homeOverride, configOverride string) (*Paths, error) {
	home, err := resolveHome(homeOverride)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, err
	}

	cfgPath := firstNonEmpty(configOverride, os.Getenv(envConfig))
	if cfgPath == "" {
		cfgPath = filepath.Join(home, "config.yaml")
	}

	p := &Paths{Home: home, Config: cfgPath}
	p.UserFile = p.under("users.json")
	p.DataDir = p.under("data")
	p.LogDir = p.under("log")
	return p, nil
}

func resolveHome(override string) (string, error) {
	if home := firstNonEmpty(override, os.Getenv(envHome)); home != "" {
		return filepath.Abs(home)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(xdg) {
		return filepath.Join(xdg, "zipstore"), nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, ".local", "share", "zipstore"), nil
}

// under resolves a path from the config file against home
func (p *Paths) under(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Home, name)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
