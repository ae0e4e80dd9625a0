package epp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"limsepp/internal/blob"
)

func TestRunLogWritesRunAndMainLog(t *testing.T) {
	dir := t.TempDir()
	runPath := filepath.Join(dir, "run.log")
	mainPath := filepath.Join(dir, "main.log")

	rl, err := NewRunLog(runPath, mainPath, zapcore.InfoLevel)
	require.NoError(t, err)
	rl.LogInvocation([]string{"epp", "copy-field", "--pid", "24-37754"})
	rl.Logger.Info("hello")
	require.NoError(t, rl.Close())

	for _, p := range []string{runPath, mainPath} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Contains(t, string(data), "copy-field")
		assert.Contains(t, string(data), "hello")
	}
}

func TestPrependPrevious(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	_, err := store.Put(ctx, "92-450", bytes.NewBufferString("old run\n"), blob.WriteOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, PrependPrevious(ctx, store, "92-450", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "old run\n"))
	assert.Contains(t, string(data), strings.Repeat("=", 80))
}

func TestPrependPreviousMissingArtifactIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	err := PrependPrevious(context.Background(), blob.NewMemory(), "nope", path)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no log file created")
}

func TestFetchResultFilePrefersDownload(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	_, err := store.Put(ctx, "92-1", bytes.NewBufferString("stored\n"), blob.WriteOptions{})
	require.NoError(t, err)

	rc, err := FetchResultFile(ctx, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("downloaded\n")), nil
	}, store, "92-1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "downloaded\n", string(data))
}

func TestFetchResultFileFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	_, err := store.Put(ctx, "92-1", bytes.NewBufferString("stored\n"), blob.WriteOptions{})
	require.NoError(t, err)

	rc, err := FetchResultFile(ctx, func(context.Context) (io.ReadCloser, error) {
		return nil, errors.New("410 gone")
	}, store, "92-1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "stored\n", string(data))
}

func TestFetchResultFileBothMissing(t *testing.T) {
	downloadErr := errors.New("410 gone")
	_, err := FetchResultFile(context.Background(), func(context.Context) (io.ReadCloser, error) {
		return nil, downloadErr
	}, blob.NewMemory(), "92-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, downloadErr)
}

func TestAttachFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n"), 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	dst, err := AttachFile(src, "92-450")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "92-450_report.csv"), dst)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}
