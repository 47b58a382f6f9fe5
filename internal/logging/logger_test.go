package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" warn ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestNew_WritesFileWithServiceFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "drivelink.log")
	log, err := New(cfgpkg.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   cfgpkg.LumberjackConfig{Filename: file, MaxSizeMB: 1},
	}, cfgpkg.AppConfig{Name: "drivelink", Env: "dev"})
	require.NoError(t, err)
	log.Debug("frame decoded")
	_ = log.Sync()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "frame decoded")
	assert.Contains(t, string(b), `"service":"drivelink"`)
	assert.Contains(t, string(b), `"env":"dev"`)
}

func TestNew_LevelFilters(t *testing.T) {
	file := filepath.Join(t.TempDir(), "drivelink.log")
	log, err := New(cfgpkg.LoggingConfig{Level: "warn", File: cfgpkg.LumberjackConfig{Filename: file}}, cfgpkg.AppConfig{})
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept")
	_ = log.Sync()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "dropped")
	assert.Contains(t, string(b), "kept")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(cfgpkg.LoggingConfig{Format: "xml"}, cfgpkg.AppConfig{})
	assert.Error(t, err)
}
