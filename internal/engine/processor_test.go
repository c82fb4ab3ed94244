package engine_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/engine"
	"github.com/kbsync/kbsync/internal/fingerprint"
	"github.com/kbsync/kbsync/internal/ragsink/mockrag"
	"github.com/kbsync/kbsync/internal/source"
)

// fakeSource is a minimal in-memory source.Adapter for processor tests.
type fakeSource struct {
	content   map[string]string
	fetchErrs map[string]error
}

func (f *fakeSource) List(ctx context.Context) ([]source.Descriptor, error) { return nil, nil }

func (f *fakeSource) Fetch(ctx context.Context, uri string) (*source.Content, error) {
	if err, ok := f.fetchErrs[uri]; ok {
		return nil, err
	}
	data := f.content[uri]
	return &source.Content{Reader: io.NopCloser(strings.NewReader(data)), Size: int64(len(data))}, nil
}

func newRetry() engine.RetryPolicy {
	return engine.RetryPolicy{MaxAttempts: 1}
}

func TestProcessor_New_UploadsAndRecordsHash(t *testing.T) {
	src := &fakeSource{content: map[string]string{"a.txt": "hello"}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeNew,
		Descriptor:  &source.Descriptor{OriginalURI: "a.txt", Size: 5},
	})

	require.NoError(t, err)
	assert.True(t, out.Uploaded)
	assert.Equal(t, catalog.FileStatusNew, out.Record.Status)
	assert.Equal(t, fingerprint.Hash([]byte("hello")), out.Record.FileHash)
	assert.NotEmpty(t, out.Record.RAGURI)
	assert.Equal(t, 1, rag.Len())
}

func TestProcessor_New_RestorationReusesUUIDFilename(t *testing.T) {
	src := &fakeSource{content: map[string]string{"a.txt": "hello"}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	existing := catalog.FileRecord{UUIDFilename: "keep-me.txt", Status: catalog.FileStatusDeleted}
	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeNew,
		Descriptor:  &source.Descriptor{OriginalURI: "a.txt", Size: 5},
		Existing:    &existing,
		Restoration: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "keep-me.txt", out.Record.UUIDFilename)
}

func TestProcessor_Modified_HashMatchDowngradesToUnchanged(t *testing.T) {
	src := &fakeSource{content: map[string]string{"a.txt": "hello"}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	existing := catalog.FileRecord{
		UUIDFilename: "a-uuid.txt",
		FileHash:     fingerprint.Hash([]byte("hello")),
		RAGURI:       "mock://a-uuid.txt",
	}
	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeModified,
		Descriptor:  &source.Descriptor{OriginalURI: "a.txt", Size: 5},
		Existing:    &existing,
	})

	require.NoError(t, err)
	assert.False(t, out.Updated)
	assert.Equal(t, catalog.FileStatusUnchanged, out.Record.Status)
	assert.Equal(t, existing.RAGURI, out.Record.RAGURI)
}

func TestProcessor_Modified_SizeDecidedSkipsHashDowngrade(t *testing.T) {
	src := &fakeSource{content: map[string]string{"a.txt": "hello"}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	existing := catalog.FileRecord{
		UUIDFilename: "a-uuid.txt",
		FileHash:     fingerprint.Hash([]byte("hello")),
		RAGURI:       "mock://a-uuid.txt",
	}
	rag.Upload(context.Background(), strings.NewReader("hello"), "a-uuid.txt", nil)

	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeModified,
		Descriptor:  &source.Descriptor{OriginalURI: "a.txt", Size: 5},
		Existing:    &existing,
		SizeDecided: true,
	})

	require.NoError(t, err)
	assert.True(t, out.Updated)
	assert.Equal(t, catalog.FileStatusModified, out.Record.Status)
}

func TestProcessor_Unchanged_NoFetch(t *testing.T) {
	src := &fakeSource{content: map[string]string{}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	existing := catalog.FileRecord{UUIDFilename: "a-uuid.txt", RAGURI: "mock://a-uuid.txt", FileHash: "h"}
	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeUnchanged,
		Existing:    &existing,
	})

	require.NoError(t, err)
	assert.True(t, out.FetchSkipped)
	assert.Equal(t, existing.UUIDFilename, out.Record.UUIDFilename)
}

func TestProcessor_Deleted_RemovesArtifact(t *testing.T) {
	src := &fakeSource{}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	ragURI, err := rag.Upload(context.Background(), strings.NewReader("hello"), "a-uuid.txt", nil)
	require.NoError(t, err)

	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)
	existing := catalog.FileRecord{UUIDFilename: "a-uuid.txt", RAGURI: ragURI}
	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeDeleted,
		Existing:    &existing,
	})

	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, catalog.FileStatusDeleted, out.Record.Status)
	assert.Equal(t, 0, rag.Len())
}

func TestProcessor_Deleted_MissingArtifactIsNonFatal(t *testing.T) {
	src := &fakeSource{}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)

	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)
	existing := catalog.FileRecord{UUIDFilename: "a-uuid.txt", RAGURI: "mock://never-existed.txt"}
	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeDeleted,
		Existing:    &existing,
	})

	require.NoError(t, err)
	assert.True(t, out.Deleted)
}

func TestProcessor_FetchError_ProducesErrorRecordNotFailure(t *testing.T) {
	src := &fakeSource{fetchErrs: map[string]error{"a.txt": source.ErrNotFound}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeNew,
		Descriptor:  &source.Descriptor{OriginalURI: "a.txt", Size: 5},
	})

	require.NoError(t, err)
	assert.Equal(t, catalog.FileStatusError, out.Record.Status)
	assert.NotEmpty(t, out.Record.ErrorMessage)
}

func TestProcessor_ScanMode_SkipsRAGCalls(t *testing.T) {
	src := &fakeSource{content: map[string]string{"a.txt": "hello"}}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), true, nil)

	out, err := p.Process(context.Background(), engine.Classification{
		OriginalURI: "a.txt",
		Change:      engine.ChangeNew,
		Descriptor:  &source.Descriptor{OriginalURI: "a.txt", Size: 5},
	})

	require.NoError(t, err)
	assert.False(t, out.Uploaded)
	assert.Equal(t, catalog.FileStatusScanned, out.Record.Status)
	assert.Equal(t, 0, rag.Len())
}

func TestProcessor_CancelledContextBeforeWork(t *testing.T) {
	src := &fakeSource{}
	rag, err := mockrag.New(nil)
	require.NoError(t, err)
	p := engine.NewProcessor("kb1", src, rag, newRetry(), false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Process(ctx, engine.Classification{OriginalURI: "a.txt", Change: engine.ChangeNew})
	assert.Error(t, err)
}
