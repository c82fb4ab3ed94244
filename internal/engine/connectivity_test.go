package engine_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsync/kbsync/internal/engine"
	"github.com/kbsync/kbsync/internal/ragsink/mockrag"
	"github.com/kbsync/kbsync/internal/source/localfs"
)

func TestCheckConnectivity_BothReachable(t *testing.T) {
	src, err := localfs.New(localfs.Config{RootPath: t.TempDir()})
	require.NoError(t, err)
	rag, err := mockrag.New(nil)
	require.NoError(t, err)

	report := engine.CheckConnectivity(context.Background(), src, rag)

	assert.True(t, report.SourceReachable)
	assert.True(t, report.RAGReachable)
	assert.True(t, report.OK())
	assert.Empty(t, report.SourceError)
	assert.Empty(t, report.RAGError)
}

func TestCheckConnectivity_SourceUnreachable(t *testing.T) {
	root := t.TempDir()
	src, err := localfs.New(localfs.Config{RootPath: root})
	require.NoError(t, err)
	rag, err := mockrag.New(nil)
	require.NoError(t, err)

	// New validates root at construction time, so to exercise the
	// unreachable path we remove the root after the adapter exists and
	// before CheckConnectivity calls List.
	require.NoError(t, os.RemoveAll(root))

	report := engine.CheckConnectivity(context.Background(), src, rag)

	assert.False(t, report.SourceReachable)
	assert.NotEmpty(t, report.SourceError)
	assert.True(t, report.RAGReachable)
	assert.False(t, report.OK())
}
