// Package config layers defaults, an optional config file, LIPSYNC_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "LIPSYNC"

// Settings holds tool locations and plumbing options. Per-render inputs
// (transcript, speech, output) are flags only.
type Settings struct {
	RhubarbPath string `mapstructure:"rhubarb"`
	FFmpegPath  string `mapstructure:"ffmpeg"`
	ImageRoot   string `mapstructure:"image-root"`
	ImageSet    string `mapstructure:"imgset"`
	CacheDir    string `mapstructure:"cache-dir"`
	CacheURL    string `mapstructure:"cache-url"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	Parallel    int    `mapstructure:"parallel"`
}

func Defaults() Settings {
	return Settings{
		RhubarbPath: "rhubarb",
		FFmpegPath:  "ffmpeg",
		ImageRoot:   "img",
		ImageSet:    "pixel",
		CacheDir:    ".cache",
		LogLevel:    "info",
		LogFormat:   "console",
		Parallel:    2,
	}
}

// LoadDotEnv loads .env from the working directory if there is one.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load resolves Settings. configFile may be empty, in which case lipsync.yaml
// is looked up in the working directory and $HOME/.config/lipsync; a missing
// file is not an error. Flags in fs that were set explicitly take precedence.
func Load(configFile string, fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("rhubarb", d.RhubarbPath)
	v.SetDefault("ffmpeg", d.FFmpegPath)
	v.SetDefault("image-root", d.ImageRoot)
	v.SetDefault("imgset", d.ImageSet)
	v.SetDefault("cache-dir", d.CacheDir)
	v.SetDefault("cache-url", d.CacheURL)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("metrics-addr", d.MetricsAddr)
	v.SetDefault("parallel", d.Parallel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("lipsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "lipsync"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		for _, key := range v.AllKeys() {
			if f := fs.Lookup(key); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if s.Parallel <= 0 {
		return Settings{}, fmt.Errorf("parallel must be > 0")
	}
	return s, nil
}
