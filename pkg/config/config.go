package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix  = "SYSGUARD"
	configName = "sysguard"
	configDir  = ".sysguard"
)

type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // console or json
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

type ScanConfig struct {
	// CommandTimeout bounds each external command; 0 waits forever.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	// Root is prepended to every file the checks read.
	Root string `mapstructure:"root" yaml:"root"`
}

type LocaleConfig struct {
	OffKeywords     []string `mapstructure:"off_keywords" yaml:"off_keywords"`
	RunningKeywords []string `mapstructure:"running_keywords" yaml:"running_keywords"`
	StoppedKeywords []string `mapstructure:"stopped_keywords" yaml:"stopped_keywords"`
}

type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan"`
	Locale LocaleConfig `mapstructure:"locale" yaml:"locale"`
}

// SetDefaults registers every default on v so env vars can override keys
// that never appear in a file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "sysguard")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", false)

	v.SetDefault("scan.command_timeout", 30*time.Second)
	v.SetDefault("scan.root", "")

	v.SetDefault("locale.off_keywords", []string{"off", "关闭"})
	v.SetDefault("locale.running_keywords", []string{"running", "正在运行"})
	v.SetDefault("locale.stopped_keywords", []string{"not running"})
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// GetConfigPath returns ~/.sysguard/sysguard.yaml, creating the directory.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, configDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+".yaml"), nil
}

// Load reads path, or sysguard.yaml from the working directory and
// ~/.sysguard when path is empty, then applies SYSGUARD_* env overrides.
// A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, configDir))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the scanner cannot run with.
func (c *Config) Validate() error {
	if c.Scan.CommandTimeout < 0 {
		return fmt.Errorf("scan.command_timeout must not be negative, got %s", c.Scan.CommandTimeout)
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}

// SaveConfig writes cfg as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
