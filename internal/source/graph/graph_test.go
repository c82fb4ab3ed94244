package graph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsync/kbsync/internal/source"
	"github.com/kbsync/kbsync/internal/source/graph"
)

type fakeClient struct {
	driveID     string
	driveErr    error
	items       []graph.Item
	listErr     error
	deltaPage   graph.DeltaPage
	deltaErr    error
	downloads   map[string]string
	downloadErr error
}

func (f *fakeClient) DriveID(ctx context.Context) (string, error) { return f.driveID, f.driveErr }
func (f *fakeClient) ListAll(ctx context.Context) ([]graph.Item, error) {
	return f.items, f.listErr
}
func (f *fakeClient) Delta(ctx context.Context, token string) (graph.DeltaPage, error) {
	return f.deltaPage, f.deltaErr
}
func (f *fakeClient) Download(ctx context.Context, path string) ([]byte, string, error) {
	if f.downloadErr != nil {
		return nil, "", f.downloadErr
	}
	return []byte(f.downloads[path]), "text/plain", nil
}

func noLimitConfig() graph.Config {
	return graph.Config{RateLimitPerSecond: 1000}
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := graph.New("sharepoint", noLimitConfig(), nil)
	assert.Error(t, err)
}

func TestAdapter_List_FiltersFoldersAndAppliesPatterns(t *testing.T) {
	client := &fakeClient{items: []graph.Item{
		{Path: "docs/a.md", Size: 10},
		{Path: "docs/sub", IsFolder: true},
		{Path: "docs/b.txt", Size: 5},
	}}
	cfg := noLimitConfig()
	cfg.IncludeExtensions = []string{"md"}
	a, err := graph.New("sharepoint", cfg, client)
	require.NoError(t, err)

	listing, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "docs/a.md", listing[0].OriginalURI)
}

func TestAdapter_List_WrapsClientError(t *testing.T) {
	client := &fakeClient{listErr: errors.New("boom")}
	a, err := graph.New("sharepoint", noLimitConfig(), client)
	require.NoError(t, err)

	_, err = a.List(context.Background())
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestAdapter_DeltaList_EmitsTombstonesForDeletions(t *testing.T) {
	now := time.Now()
	client := &fakeClient{deltaPage: graph.DeltaPage{
		Items:        []graph.Item{{Path: "a.md", Size: 1, ModifiedAt: &now}},
		DeletedPaths: []string{"b.md"},
		NextToken:    "tok2",
	}}
	a, err := graph.New("sharepoint", noLimitConfig(), client)
	require.NoError(t, err)

	descriptors, next, err := a.DeltaList(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, "tok2", next)
	require.Len(t, descriptors, 2)

	var sawTombstone bool
	for _, d := range descriptors {
		if d.OriginalURI == "b.md" {
			sawTombstone = true
			assert.True(t, d.Tombstone)
		}
	}
	assert.True(t, sawTombstone)
}

func TestAdapter_Fetch_ReturnsContent(t *testing.T) {
	client := &fakeClient{downloads: map[string]string{"a.md": "hello"}}
	a, err := graph.New("sharepoint", noLimitConfig(), client)
	require.NoError(t, err)

	content, err := a.Fetch(context.Background(), "a.md")
	require.NoError(t, err)
	defer content.Reader.Close()
	assert.Equal(t, int64(5), content.Size)
}

func TestAdapter_DriveID_WrapsClientError(t *testing.T) {
	client := &fakeClient{driveErr: errors.New("auth failed")}
	a, err := graph.New("onedrive", noLimitConfig(), client)
	require.NoError(t, err)

	_, err = a.DriveID(context.Background())
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}
