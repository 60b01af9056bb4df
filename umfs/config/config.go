package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/undo-memfs/umfs"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Mount   MountConfig   `mapstructure:"mount"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
	Statfs  StatfsConfig  `mapstructure:"statfs"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Shell   ShellConfig   `mapstructure:"shell"`
}

// MountConfig stores FUSE mount options.
type MountConfig struct {
	Point      string `mapstructure:"point"`
	AllowOther bool   `mapstructure:"allowOther"`
	Debug      bool   `mapstructure:"debug"`
	FsName     string `mapstructure:"fsName"`
}

// JournalConfig bounds the undo history. MaxDepth 0 keeps everything.
type JournalConfig struct {
	MaxDepth int `mapstructure:"maxDepth"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// StatfsConfig holds the figures reported by statfs.
type StatfsConfig struct {
	BlockSize       uint32 `mapstructure:"blockSize"`
	Blocks          uint64 `mapstructure:"blocks"`
	BlocksAvailable uint64 `mapstructure:"blocksAvailable"`
	MaxFiles        uint64 `mapstructure:"maxFiles"`
	MaxFileSize     int64  `mapstructure:"maxFileSize"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type ShellConfig struct {
	Prompt string `mapstructure:"prompt"`
}

// ToTypes converts the statfs section into the filesystem's form.
func (s StatfsConfig) ToTypes() types.StatfsConfig {
	return types.StatfsConfig{
		BlockSize:       s.BlockSize,
		Blocks:          s.Blocks,
		BlocksAvailable: s.BlocksAvailable,
		MaxFiles:        s.MaxFiles,
		MaxFileSize:     s.MaxFileSize,
	}
}

// Validate rejects settings the filesystem cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Mount.Point) == "" {
		return errors.New("mount.point must not be empty")
	}
	if c.Journal.MaxDepth < 0 {
		return fmt.Errorf("journal.maxDepth must be >= 0, got %d", c.Journal.MaxDepth)
	}
	if c.Statfs.BlockSize == 0 {
		return errors.New("statfs.blockSize must be positive")
	}
	if c.Statfs.MaxFileSize <= 0 {
		return fmt.Errorf("statfs.maxFileSize must be positive, got %d", c.Statfs.MaxFileSize)
	}
	if c.Statfs.BlocksAvailable > c.Statfs.Blocks {
		return fmt.Errorf("statfs.blocksAvailable (%d) exceeds statfs.blocks (%d)", c.Statfs.BlocksAvailable, c.Statfs.Blocks)
	}
	return nil
}

// LoadConfig reads configuration from file or environment variables.
// Environment variables use the UMFS_ prefix with dots replaced by
// underscores, e.g. UMFS_MOUNT_POINT. The result is not validated, so
// callers can apply their own overrides first and then call Validate.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("/etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultAppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mount.point", internal.DefaultMountPoint)
	v.SetDefault("mount.allowOther", false)
	v.SetDefault("mount.debug", false)
	v.SetDefault("mount.fsName", internal.DefaultAppName)

	v.SetDefault("journal.maxDepth", 0)
	v.SetDefault("logging.level", internal.DefaultLogLevel)

	v.SetDefault("statfs.blockSize", internal.DefaultStatfsBlockSize)
	v.SetDefault("statfs.blocks", internal.DefaultStatfsBlocks)
	v.SetDefault("statfs.blocksAvailable", internal.DefaultStatfsBlocksAvailable)
	v.SetDefault("statfs.maxFiles", internal.DefaultStatfsMaxFiles)
	v.SetDefault("statfs.maxFileSize", internal.DefaultMaxFileSize)

	v.SetDefault("metrics.address", "")
	v.SetDefault("shell.prompt", internal.DefaultShellPrompt)
}
