package config_test

import (
	"testing"
	"time"

	"github.com/abhilashshingan/collaborative-editor/internal/config"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, config.DefaultPort, cfg.Port)
	require.Equal(t, config.DefaultThreads(), cfg.Threads)
	require.Equal(t, config.DefaultCleanupInterval, cfg.CleanupInterval)
	require.Equal(t, config.DefaultMaxIdle, cfg.MaxIdle)
}

func TestParse_OverridesFromFlags(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]string{
		"-port=9090",
		"-threads=8",
		"-cleanup-interval=60",
		"-max-idle=120",
	})
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 8, cfg.Threads)
	require.Equal(t, time.Minute, cfg.CleanupInterval)
	require.Equal(t, 2*time.Minute, cfg.MaxIdle)
}

func TestParse_RejectsInvalidPort(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]string{"-port=99999"})
	require.ErrorIs(t, err, config.ErrInvalidPort)
}

func TestValidate_RejectsNonPositiveThreads(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Port: 8080, Threads: 0, CleanupInterval: time.Second, MaxIdle: time.Second}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidThreads)
}

func TestAddr(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Port: 8080}
	require.Equal(t, ":8080", cfg.Addr())
}
