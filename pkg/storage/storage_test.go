package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalPutOpenDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Put(ctx, "orders/abc/proof.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "orders/abc/proof.png", ref)

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, ref))
	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Open(ctx, ref)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalPutLeavesNothingOnFailure(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "orders/x/proof.jpg", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(root + "/orders/x")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../secret", "a/../../b", ".."} {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"))
		require.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestNewLocalRequiresRoot(t *testing.T) {
	_, err := NewLocal(" ")
	require.Error(t, err)
}
