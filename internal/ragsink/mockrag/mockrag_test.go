package mockrag_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/ragsink/mockrag"
)

func TestAdapter_UploadThenGet(t *testing.T) {
	a, err := mockrag.New(nil)
	require.NoError(t, err)

	uri, err := a.Upload(context.Background(), strings.NewReader("hello"), "f.txt", ragsink.Metadata{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "mock://f.txt", uri)

	info, err := a.Get(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "v", info.Metadata["k"])
}

func TestAdapter_UpdateMissingReturnsConflict(t *testing.T) {
	a, err := mockrag.New(nil)
	require.NoError(t, err)

	err = a.Update(context.Background(), "mock://nope.txt", strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, ragsink.ErrConflict)
}

func TestAdapter_UpdateOverwritesExisting(t *testing.T) {
	a, err := mockrag.New(nil)
	require.NoError(t, err)
	uri, err := a.Upload(context.Background(), strings.NewReader("v1"), "f.txt", nil)
	require.NoError(t, err)

	require.NoError(t, a.Update(context.Background(), uri, strings.NewReader("v2"), nil))

	content, ok := a.Content(uri)
	require.True(t, ok)
	assert.Equal(t, "v2", string(content))
}

func TestAdapter_DeleteMissingReturnsNotFound(t *testing.T) {
	a, err := mockrag.New(nil)
	require.NoError(t, err)

	err = a.Delete(context.Background(), "mock://nope.txt")
	assert.ErrorIs(t, err, ragsink.ErrNotFound)
}

func TestAdapter_ListFiltersByPrefix(t *testing.T) {
	a, err := mockrag.New(nil)
	require.NoError(t, err)
	_, err = a.Upload(context.Background(), strings.NewReader("x"), "kb1-a.txt", nil)
	require.NoError(t, err)
	_, err = a.Upload(context.Background(), strings.NewReader("x"), "kb2-a.txt", nil)
	require.NoError(t, err)

	out, err := a.List(context.Background(), "mock://kb1-")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "mock://kb1-a.txt", out[0].RAGURI)
}

func TestAdapter_ListEmptyPrefixReturnsAll(t *testing.T) {
	a, err := mockrag.New(nil)
	require.NoError(t, err)
	_, err = a.Upload(context.Background(), strings.NewReader("x"), "a.txt", nil)
	require.NoError(t, err)
	_, err = a.Upload(context.Background(), strings.NewReader("x"), "b.txt", nil)
	require.NoError(t, err)

	out, err := a.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
