package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfigWritesSampleFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	written, err := InitConfigToPath(path, false)
	require.NoError(t, err)
	require.Equal(t, path, written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	contentStr := string(content)
	for _, section := range []string{"logging:", "tcp:", "udp:", "metrics:", "shutdown:"} {
		require.Contains(t, contentStr, section)
	}

	var roundTrip Config
	require.NoError(t, yaml.Unmarshal(content, &roundTrip))
	require.Equal(t, DefaultConfig().Logging.Level, roundTrip.Logging.Level)
}

func TestInitConfigRefusesToOverwriteWithoutForce(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	_, err := InitConfigToPath(path, false)
	require.NoError(t, err)

	_, err = InitConfigToPath(path, false)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "already exists"))

	_, err = InitConfigToPath(path, true)
	require.NoError(t, err)
}
