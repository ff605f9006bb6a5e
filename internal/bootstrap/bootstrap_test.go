package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformerrors "poap-og-server/internal/platform/errors"
	platformlogging "poap-og-server/internal/platform/logging"
	platformtesting "poap-og-server/internal/platform/testing"
)

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"storage:init-database",
		"cache:init-backend",
		"assets:load",
		"badge:init-validator",
		"upload:init-pipeline",
		"preview:init-orchestrator",
		"refresh:init-job",
	}
	require.Len(t, steps, len(want))
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID, "step %d", i)
	}
}

func TestInitGraphDependenciesPrecedeSteps(t *testing.T) {
	seen := map[string]bool{}
	for _, step := range InitGraph() {
		for _, dep := range step.DependsOn {
			assert.True(t, seen[dep], "%s depends on %s which runs later", step.ID, dep)
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitGraph(t *testing.T) {
	state := &appState{loader: platformtesting.ConfigLoader(t, ""), startedAt: time.Now()}
	err := executeInitSteps(context.Background(), InitGraph(), state)
	require.NoError(t, err)
	defer state.close()

	assert.NotNil(t, state.config)
	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.metrics)
	assert.NotNil(t, state.observabilityShutdown)
	assert.Nil(t, state.db, "memory cache must not open sqlite")
	assert.NotNil(t, state.cache)
	assert.NotNil(t, state.assets)
	assert.NotNil(t, state.validator)
	assert.NotNil(t, state.uploads)
	assert.NotNil(t, state.orchestrator)
	assert.NotNil(t, state.bus)
	assert.NotNil(t, state.refreshJob)
	assert.True(t, state.bus.HasCallback("preview:warm"))

	state.bus.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, state.drain(ctx))
	assert.True(t, state.uploads.IsStopped())
}

func TestExecuteInitStepsUnmetDependency(t *testing.T) {
	steps := []initStep{
		{ID: "b", DependsOn: []string{"a"}, Execute: func(context.Context, *appState) error { return nil }},
	}
	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
	assert.Contains(t, err.Error(), "dependency a not satisfied")
}

func TestExecuteInitStepsMissingExecute(t *testing.T) {
	err := executeInitSteps(context.Background(), []initStep{{ID: "noop"}}, &appState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing execute function")
}

func TestExecuteInitStepsWrapsWithStepKind(t *testing.T) {
	boom := errors.New("boom")
	steps := []initStep{
		{ID: "cache", Kind: platformerrors.KindStorage, Execute: func(context.Context, *appState) error { return boom }},
	}
	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
	assert.ErrorIs(t, err, boom)
}

func TestExecuteInitStepsKeepsTypedErrors(t *testing.T) {
	typed := platformerrors.New(platformerrors.KindConfig, "config.validate", "bad port")
	steps := []initStep{
		{ID: "cache", Kind: platformerrors.KindStorage, Execute: func(context.Context, *appState) error { return typed }},
	}
	err := executeInitSteps(context.Background(), steps, &appState{})
	assert.Same(t, typed, err)
}

func TestExecuteInitStepsNilState(t *testing.T) {
	err := executeInitSteps(context.Background(), InitGraph(), nil)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := platformlogging.NewWriter(&buf, "info")
	logBootstrapGraph(logger, InitGraph())

	content := buf.String()
	require.True(t, strings.Contains(content, "init graph"), content)
	for _, step := range InitGraph() {
		assert.Contains(t, content, step.ID)
	}
	assert.Contains(t, content, "after assets:load, badge:init-validator, upload:init-pipeline")
}

func TestExecuteInitGraphWithRedisCache(t *testing.T) {
	mr := platformtesting.StartRedis(t)
	loader := platformtesting.ConfigLoader(t, "cache:\n  driver: redis\n  prefix: \"og:\"\n  redis:\n    addr: \""+mr.Addr()+"\"\n")

	state := &appState{loader: loader, startedAt: time.Now()}
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	defer state.close()

	require.NoError(t, state.backend.Set(context.Background(), "0xabc", `{"url":"u"}`))
	assert.True(t, mr.Exists("og:0xabc"))
	assert.False(t, state.refreshJob.Authorized(""), "refresh must reject when no cron secret is set")
}
