package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideSourceRegistry_FileSystem(t *testing.T) {
	reg := provideSourceRegistry()

	adapter, err := reg.New("file_system", map[string]any{"root_path": t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestProvideSourceRegistry_UnknownTag(t *testing.T) {
	reg := provideSourceRegistry()

	_, err := reg.New("does_not_exist", nil)
	assert.Error(t, err)
}

func TestProvideSourceRegistry_GraphTagsRegistered(t *testing.T) {
	reg := provideSourceRegistry()
	assert.ElementsMatch(t, []string{"file_system", "sharepoint", "enterprise_sharepoint", "onedrive", "mixed"}, reg.Tags())
}

func TestProvideSourceRegistry_Mixed(t *testing.T) {
	reg := provideSourceRegistry()

	adapter, err := reg.New("mixed", map[string]any{
		"members": []any{
			map[string]any{"type": "file_system", "config": map[string]any{"root_path": t.TempDir()}},
			map[string]any{"type": "file_system", "config": map[string]any{"root_path": t.TempDir()}},
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestProvideSourceRegistry_MixedRequiresMembers(t *testing.T) {
	reg := provideSourceRegistry()

	_, err := reg.New("mixed", map[string]any{"members": []any{}})
	assert.Error(t, err)
}

func TestProvideSourceRegistry_MixedUnknownMemberType(t *testing.T) {
	reg := provideSourceRegistry()

	_, err := reg.New("mixed", map[string]any{
		"members": []any{
			map[string]any{"type": "not_a_real_type", "config": map[string]any{}},
		},
	})
	assert.Error(t, err)
}

func TestProvideRAGRegistry_Mock(t *testing.T) {
	reg := provideRAGRegistry()

	adapter, err := reg.New("mock", nil)
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestProvideRAGRegistry_FileSystemStorage(t *testing.T) {
	reg := provideRAGRegistry()

	adapter, err := reg.New("file_system_storage", map[string]any{
		"storage_path": t.TempDir(),
		"create_dirs":  true,
	})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestProvideRAGRegistry_TagsRegistered(t *testing.T) {
	reg := provideRAGRegistry()
	assert.ElementsMatch(t, []string{"mock", "file_system_storage", "azure_blob"}, reg.Tags())
}
