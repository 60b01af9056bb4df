package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	internal "github.com/ZanzyTHEbar/undo-memfs/umfs"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/config"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServeCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addServeFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Mount.Point = internal.DefaultMountPoint
	cfg.Logging.Level = "info"
	cfg.Journal.MaxDepth = 10

	cmd := newServeCmd(t, "--log-level", "debug", "--metrics-addr", ":9100", "--allow-other")
	applyFlagOverrides(cmd, cfg, []string{"/mnt/undo"})

	assert.Equal(t, "/mnt/undo", cfg.Mount.Point)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.True(t, cfg.Mount.AllowOther)
	assert.False(t, cfg.Mount.Debug)
	assert.Equal(t, 10, cfg.Journal.MaxDepth, "unset flags keep the configured value")
}

func TestMountpointFlagBeatsArgument(t *testing.T) {
	cfg := &config.Config{}
	cmd := newServeCmd(t, "-m", "/from/flag", "--journal-depth", "3")
	applyFlagOverrides(cmd, cfg, []string{"/from/arg"})

	assert.Equal(t, "/from/flag", cfg.Mount.Point)
	assert.Equal(t, 3, cfg.Journal.MaxDepth)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.True(t, strings.HasPrefix(out.String(), "umfs "+Version+"\n"))
	assert.Contains(t, out.String(), "Go version:")
}

func TestRootRejectsExtraArguments(t *testing.T) {
	assert.Error(t, GetRootCmd().Args(GetRootCmd(), []string{"a", "b"}))
}

func TestFlagRepairsInvalidFileValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  maxDepth: -1\n"), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cmd := newServeCmd(t, "--journal-depth", "5")
	applyFlagOverrides(cmd, cfg, nil)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Journal.MaxDepth)
}
