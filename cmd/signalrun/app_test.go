package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Setenv("REDIS_ADDR", "")
	cfg := config.DefaultConfig()
	cfg.Settings = filepath.Join(t.TempDir(), "settings.yaml")
	return cfg
}

func TestBuildAppWiresComponents(t *testing.T) {
	app, err := buildApp(testConfig(t))
	require.NoError(t, err)

	assert.NotNil(t, app.pipe)
	assert.NotNil(t, app.sched)
	assert.NotNil(t, app.server)
	assert.NotNil(t, app.engine)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	app, err := buildApp(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.RunLoop(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
}
