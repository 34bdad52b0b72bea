package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// settings resolves flags, then FEEDCTL_* env, then the config file, then defaults
var settings = newSettings()

// flagKeys maps persistent flags onto config keys
var flagKeys = map[string]string{
	"api":     "api.base_url",
	"timeout": "api.timeout",
	"output":  "output.format",
}

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("feedctl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", "http://localhost:8787")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("output.format", "text")
	v.SetDefault("log.level", "warn")
	return v
}

func systemConfigPaths() []string {
	return []string{
		"/etc/feedctl/config.toml",
		"/usr/local/etc/feedctl/config.toml",
	}
}

// defaultConfigPath returns ~/.config/feedctl/config.toml or its platform equivalent
func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "feedctl", "config.toml"), nil
}

// loadConfig merges the first system config found and then the user config.
// An explicit path must exist; the default user path is optional.
func loadConfig(v *viper.Viper, path string) error {
	for _, sys := range systemConfigPaths() {
		if _, err := os.Stat(sys); err == nil {
			v.SetConfigFile(sys)
			if err := v.MergeInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", sys, err)
			}
			break
		}
	}

	if path == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil
		}
		if _, err := os.Stat(p); err != nil {
			return nil
		}
		path = p
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func apiURL() string {
	return strings.TrimRight(settings.GetString("api.base_url"), "/")
}

func requestTimeout() time.Duration {
	return settings.GetDuration("api.timeout")
}

func outputFormat() string {
	return strings.ToLower(settings.GetString("output.format"))
}
