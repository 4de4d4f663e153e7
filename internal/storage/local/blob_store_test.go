package local_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "dumps", "nested")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutAndOpenObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		body := "-- Dump of 2024-03-01 10:00:00\nUPDATE creature_template SET name='Hogger' WHERE entry=448;\n"
		uri, err := store.PutObject(ctx, "runs/npc-names-0190c7e2.sql", "text/plain", strings.NewReader(body))
		require.NoError(t, err)

		want := filepath.Join(tempDir, "runs", "npc-names-0190c7e2.sql")
		abs, err := filepath.Abs(want)
		require.NoError(t, err)
		assert.Equal(t, "file://"+abs, uri)

		rc, err := store.OpenObject(ctx, "runs/npc-names-0190c7e2.sql")
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, body, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.PutObject(ctx, "a.sql", "", strings.NewReader("first"))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, "a.sql", "", strings.NewReader("second"))
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(tempDir, "a.sql")) // #nosec G304 -- test temp dir.
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "text/plain", strings.NewReader("data"))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.sql", "", strings.NewReader("x"))
		assert.Error(t, err)
		_, err = store.OpenObject(ctx, "../../etc/passwd")
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.OpenObject(ctx, "nope.sql")
		assert.ErrorIs(t, err, crawler.ErrObjectNotFound)
	})

	t.Run("ReaderFailureLeavesNoFile", func(t *testing.T) {
		_, err := store.PutObject(ctx, "broken.sql", "", io.MultiReader(strings.NewReader("x"), errReader{}))
		require.Error(t, err)
		_, statErr := os.Stat(filepath.Join(tempDir, "broken.sql"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
