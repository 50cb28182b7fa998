package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestConfig(t *testing.T) {
	n := neko.Modern(t)

	write := func(t *testing.T, body string) string {
		path := filepath.Join(t.TempDir(), "kernel.yml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	n.It("fills missing keys with defaults", func(t *testing.T) {
		cfg, err := LoadConfig(write(t, "max_proc: 32\n"))
		require.NoError(t, err)

		require.Equal(t, 32, cfg.MaxProc)
		require.Equal(t, DefaultMaxFileID, cfg.MaxFileID)
		require.Equal(t, "info", cfg.LogLevel)
	})

	n.It("reads every key", func(t *testing.T) {
		cfg, err := LoadConfig(write(t, "max_proc: 10\nmax_fileid: 4\nlog_level: trace\n"))
		require.NoError(t, err)

		require.Equal(t, Config{MaxProc: 10, MaxFileID: 4, LogLevel: "trace"}, cfg)
	})

	n.It("rejects a table without room for init", func(t *testing.T) {
		_, err := LoadConfig(write(t, "max_proc: 1\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)

		_, err = LoadConfig(write(t, "max_fileid: 0\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	n.It("reports unreadable files", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)

		_, err = LoadConfig(write(t, "max_proc: [\n"))
		require.Error(t, err)
	})

	n.Meow()
}
