package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "dumps/item-names.sql", "text/plain", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://dumps/item-names.sql", uri)

	payload[0] = 'C'
	rc, err := store.OpenObject(context.Background(), "dumps/item-names.sql")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "content", string(got))
	require.Equal(t, []string{"dumps/item-names.sql"}, store.Paths())

	_, err = store.OpenObject(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrObjectNotFound)
	_, err = store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
}
