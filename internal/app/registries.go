package app

import (
	"fmt"

	"github.com/kbsync/kbsync/internal/config"
	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/ragsink/azblob"
	"github.com/kbsync/kbsync/internal/ragsink/fsrag"
	"github.com/kbsync/kbsync/internal/ragsink/mockrag"
	"github.com/kbsync/kbsync/internal/source"
	"github.com/kbsync/kbsync/internal/source/graph"
	"github.com/kbsync/kbsync/internal/source/localfs"
)

// mixedMember is one entry in a "mixed" source's member list: an arbitrary
// other registered source_type_tag plus its own source_config sub-blob.
type mixedMember struct {
	Type   string         `mapstructure:"type" json:"type"`
	Config map[string]any `mapstructure:"config" json:"config"`
}

// mixedConfig is the decoded source_config blob for source_type_tag "mixed"
// (SPEC_FULL §12 item 6, grounded on original_source's mixed_source.py).
type mixedConfig struct {
	Members []mixedMember `mapstructure:"members" json:"members"`
}

// provideSourceRegistry compiles in every source adapter this deployment can
// construct: local filesystem, the three Graph-backed drive types, and the
// "mixed" composite that fans a config out across other registered types.
func provideSourceRegistry() *source.Registry {
	reg := source.NewRegistry()

	reg.Register("file_system", func(raw map[string]any) (source.Adapter, error) {
		cfg, err := config.DecodeAdapterConfig[localfs.Config](raw)
		if err != nil {
			return nil, err
		}
		return localfs.New(cfg)
	})

	for _, tag := range []string{"sharepoint", "enterprise_sharepoint", "onedrive"} {
		tag := tag
		reg.Register(tag, func(raw map[string]any) (source.Adapter, error) {
			cfg, err := config.DecodeAdapterConfig[graph.Config](raw)
			if err != nil {
				return nil, err
			}
			client, err := graph.NewHTTPClient(cfg)
			if err != nil {
				return nil, err
			}
			return graph.New(tag, cfg, client)
		})
	}

	reg.Register("mixed", func(raw map[string]any) (source.Adapter, error) {
		cfg, err := config.DecodeAdapterConfig[mixedConfig](raw)
		if err != nil {
			return nil, err
		}
		if len(cfg.Members) == 0 {
			return nil, fmt.Errorf("app: mixed source requires at least one member")
		}

		members := make([]source.Adapter, 0, len(cfg.Members))
		for i, m := range cfg.Members {
			adapter, err := reg.New(m.Type, m.Config)
			if err != nil {
				return nil, fmt.Errorf("app: mixed member %d (%s): %w", i, m.Type, err)
			}
			members = append(members, adapter)
		}
		return source.NewComposite(members...)
	})

	return reg
}

// provideRAGRegistry compiles in every RAG backend this deployment can
// construct: the in-memory mock, the on-disk file_system_storage backend, and
// Azure Blob Storage.
func provideRAGRegistry() *ragsink.Registry {
	reg := ragsink.NewRegistry()

	reg.Register("mock", func(raw map[string]any) (ragsink.Adapter, error) {
		return mockrag.New(raw)
	})

	reg.Register("file_system_storage", func(raw map[string]any) (ragsink.Adapter, error) {
		cfg, err := config.DecodeAdapterConfig[fsrag.Config](raw)
		if err != nil {
			return nil, err
		}
		return fsrag.New(cfg)
	})

	reg.Register("azure_blob", func(raw map[string]any) (ragsink.Adapter, error) {
		cfg, err := config.DecodeAdapterConfig[azblob.Config](raw)
		if err != nil {
			return nil, err
		}
		return azblob.New(cfg)
	})

	return reg
}
