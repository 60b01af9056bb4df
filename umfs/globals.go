package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup, the env prefix and the fuse fs name
	DefaultAppName    = "umfs"
	DefaultConfigPath = filepath.Join(getHomeDir(), ".config", DefaultAppName)

	// Mount defaults
	DefaultMountPoint  = "memdir"
	DefaultShellPrompt = "undoshell: "

	// statfs defaults, reported verbatim to the kernel
	DefaultStatfsBlockSize       = 512
	DefaultStatfsBlocks          = 4096
	DefaultStatfsBlocksAvailable = 2048
	DefaultStatfsMaxFiles        = 1 << 20

	// Largest size truncate and write may grow a file to
	DefaultMaxFileSize = int64(1 << 30)

	DefaultLogLevel = "info"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// NewLogger builds a timestamped logger writing to w at the given level.
// Unknown or empty levels fall back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
