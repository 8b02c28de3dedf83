package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "jobcrawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  keywords: golang\n"), 0o600))

	used, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "golang", viper.GetString("search.keywords"))
	assert.Equal(t, 10, viper.GetInt("search.results_wanted"))
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := InitConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestInitConfigWithoutFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	used, err := InitConfig("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, "jobs_data.json", viper.GetString("output.destination"))
}
