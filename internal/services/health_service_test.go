package services

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sroanalysis/internal/config"
	"sroanalysis/internal/shared/testutil"
	"sroanalysis/pkg/contracts"
)

func TestHealthCheck(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	hs := NewHealthService(nil, nil, nil, logger)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, contracts.Version, status.Version)
	assert.True(t, handler.ContainsMessage("HealthService initialized"))

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Equal(t, runtime.Version(), live.Runtime["go_version"])

	version := hs.Version()
	assert.Equal(t, contracts.Version, version["version"])
	assert.Equal(t, contracts.APIVersion, version["api_version"])
}

func TestReadinessCheck(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	t.Run("ready", func(t *testing.T) {
		svc, paths := newTestService(t, &MockPipelineRunner{})
		hs := NewHealthService(paths, []string{config.SinkCSV}, svc, logger)

		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "ready", status.Status)
		require.Contains(t, status.Services, "pipeline")
		assert.Equal(t, "idle", status.Services["pipeline"].(ServiceHealth).Message)
		assert.DirExists(t, paths.OutputDir)
	})

	t.Run("missing inputs", func(t *testing.T) {
		dir := t.TempDir()
		paths := &config.Paths{InputDir: filepath.Join(dir, "missing"), OutputDir: filepath.Join(dir, "out")}
		hs := NewHealthService(paths, []string{config.SinkCSV}, nil, logger)

		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)
		assert.Equal(t, "not_ready", status.Services["inputs"].(ServiceHealth).Status)
		assert.Equal(t, "not_ready", status.Services["pipeline"].(ServiceHealth).Status)
	})

	t.Run("no sinks", func(t *testing.T) {
		_, paths := newTestService(t, &MockPipelineRunner{})
		hs := NewHealthService(paths, nil, nil, logger)
		assert.Equal(t, "not_ready", hs.ReadinessCheck(context.Background()).Services["outputs"].(ServiceHealth).Status)
	})
}
