package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/recbridge/internal/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	tests := []struct {
		path  []string
		flags []string
	}{
		{[]string{"serve"}, nil},
		{[]string{"stop"}, []string{"timeout"}},
		{[]string{"status"}, nil},
		{[]string{"poll"}, []string{"json"}},
		{[]string{"record", "start"}, []string{"user", "file", "source", "rate", "channels", "session"}},
		{[]string{"record", "stop"}, []string{"session"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.path, " "), func(t *testing.T) {
			cmd, rest, err := GetRootCmd().Find(tt.path)
			require.NoError(t, err)
			require.Empty(t, rest)
			assert.Equal(t, tt.path[len(tt.path)-1], cmd.Name())
			assert.NotEmpty(t, cmd.Short)

			for _, name := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s", name)
			}
			assert.NotNil(t, cmd.InheritedFlags().Lookup("config"))
		})
	}
}

func TestVersionOutput(t *testing.T) {
	output, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "recbridge version "+daemon.Version+"\n", output)
	assert.Equal(t, daemon.Version, GetVersion())
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recbridge.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"project_root": "/tmp/project", "logging": {"level": "warn"}}`), 0644))

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level, "default --log-level must not override the file")

	require.NoError(t, rootCmd.PersistentFlags().Set("log-level", "debug"))
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand(t, "pair")
	assert.ErrorContains(t, err, `unknown command "pair"`)
}
