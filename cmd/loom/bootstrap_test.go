package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/loom/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/loom/internal/adapters/driving/cli"
	"github.com/custodia-labs/loom/internal/core/domain"
)

func TestBootstrap_InMemory(t *testing.T) {
	dir := t.TempDir()

	svc, err := bootstrap(context.Background(), cli.Options{ConfigDir: dir, InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	assert.NotNil(t, svc.Context)
	assert.NotNil(t, svc.Index)
	assert.NotNil(t, svc.Generation)
	assert.NotNil(t, svc.Settings)
	assert.NotNil(t, svc.Prompts)
	assert.NotNil(t, svc.Validator)

	_, err = os.Stat(filepath.Join(dir, "data"))
	assert.True(t, os.IsNotExist(err), "in-memory mode must not create a database")
}

func TestBootstrap_SQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	svc, err := bootstrap(ctx, cli.Options{ConfigDir: dir})
	require.NoError(t, err)

	report := svc.Index.IndexWikiEntry(ctx, domain.WikiEntry{ID: "qingyun", Name: "青云山", Description: "剑宗所在的雪山。"})
	require.NoError(t, report.Err)
	require.NoError(t, svc.Close())

	svc, err = bootstrap(ctx, cli.Options{ConfigDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	result, err := svc.Context.BuildContext(ctx, "青云山", 0, domain.BuildOptions{})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "青云山")
	assert.FileExists(t, filepath.Join(dir, "data", sqlite.DatabaseFile))
}

func TestBootstrap_GenerationWithoutLLM(t *testing.T) {
	svc, err := bootstrap(context.Background(), cli.Options{ConfigDir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	_, err = svc.Generation.Generate(context.Background(), domain.GenerationRequest{Instruction: "续写"})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
