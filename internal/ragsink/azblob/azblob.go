// Package azblob implements the RAG type "azure_blob": artifacts are stored as
// blobs in a single Azure Blob Storage container, one blob per uuid_filename.
//
// This package has no grounding in the example corpus (no pack repo talks to
// Azure Blob Storage); its shape follows the azure-sdk-for-go client package's
// own conventions (an *azblob.Client wrapping one of four auth methods) as
// named in SPEC_FULL §11/§6.
package azblob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/kbsync/kbsync/internal/ragsink"
)

// AuthMethod selects how the adapter authenticates against the storage account.
type AuthMethod string

const (
	AuthServicePrincipal  AuthMethod = "service_principal"
	AuthConnectionString  AuthMethod = "connection_string"
	AuthManagedIdentity   AuthMethod = "managed_identity"
	AuthDefaultCredential AuthMethod = "default_credential"
)

// Config is the decoded rag_config blob for rag_type_tag "azure_blob".
type Config struct {
	ContainerName      string     `mapstructure:"container_name" json:"container_name"`
	StorageAccountName string     `mapstructure:"storage_account_name" json:"storage_account_name"`
	AuthMethod         AuthMethod `mapstructure:"auth_method" json:"auth_method"`

	// ConnectionString is used when AuthMethod == AuthConnectionString.
	ConnectionString string `mapstructure:"connection_string" json:"connection_string"`

	// Service-principal sub-blob, used when AuthMethod == AuthServicePrincipal.
	TenantID     string `mapstructure:"tenant_id" json:"tenant_id"`
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret"`
}

// blobClient is the subset of *azblob.Client the adapter needs. Defined by the
// consumer so tests can substitute a fake without standing up a real account.
type blobClient interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, options *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
	DownloadStream(ctx context.Context, containerName, blobName string, options *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, options *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
	NewListBlobsFlatPager(containerName string, options *azblob.ListBlobsFlatOptions) *runtime.Pager[azblob.ListBlobsFlatResponse]
}

// Adapter persists artifacts as blobs in one Azure Blob Storage container.
type Adapter struct {
	client    blobClient
	container string
}

// New constructs an Adapter from cfg, selecting the credential chain named by
// cfg.AuthMethod. It does not discover or refresh credentials beyond what the
// chosen SDK credential type does natively (spec §13 Non-goals).
func New(cfg Config) (*Adapter, error) {
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azblob: container_name is required")
	}

	client, err := newSDKClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Adapter{client: client, container: cfg.ContainerName}, nil
}

func newSDKClient(cfg Config) (blobClient, error) {
	switch cfg.AuthMethod {
	case AuthConnectionString:
		if cfg.ConnectionString == "" {
			return nil, fmt.Errorf("azblob: connection_string is required for auth_method %q", cfg.AuthMethod)
		}
		c, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("azblob: connection string client: %w", err)
		}
		return c, nil

	case AuthServicePrincipal:
		if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("azblob: tenant_id, client_id, client_secret are required for auth_method %q", cfg.AuthMethod)
		}
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("azblob: service principal credential: %w", err)
		}
		return newTokenClient(cfg, cred)

	case AuthManagedIdentity:
		cred, err := azidentity.NewManagedIdentityCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azblob: managed identity credential: %w", err)
		}
		return newTokenClient(cfg, cred)

	default: // AuthDefaultCredential and unset
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azblob: default azure credential: %w", err)
		}
		return newTokenClient(cfg, cred)
	}
}

func newTokenClient(cfg Config, cred azcore.TokenCredential) (blobClient, error) {
	if cfg.StorageAccountName == "" {
		return nil, fmt.Errorf("azblob: storage_account_name is required for auth_method %q", cfg.AuthMethod)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.StorageAccountName)
	c, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azblob: token-credential client: %w", err)
	}
	return c, nil
}

// Upload writes content as a new blob named filename with metadata attached.
func (a *Adapter) Upload(ctx context.Context, content io.Reader, filename string, metadata ragsink.Metadata) (string, error) {
	_, err := a.client.UploadStream(ctx, a.container, filename, content, &azblob.UploadStreamOptions{
		Metadata: toAzureMetadata(metadata),
	})
	if err != nil {
		return "", translateErr(err)
	}
	return filename, nil
}

// Update overwrites the blob at ragURI. Blob storage has no native
// update-in-place distinct from upload; the adapter checks existence first so a
// missing ragURI surfaces as ErrConflict rather than silently creating a new
// blob (spec §9 reference behavior).
func (a *Adapter) Update(ctx context.Context, ragURI string, content io.Reader, metadata ragsink.Metadata) error {
	if _, err := a.Get(ctx, ragURI); err != nil {
		if errors.Is(err, ragsink.ErrNotFound) {
			return ragsink.ErrConflict
		}
		return err
	}
	_, err := a.client.UploadStream(ctx, a.container, ragURI, content, &azblob.UploadStreamOptions{
		Metadata: toAzureMetadata(metadata),
	})
	return translateErr(err)
}

// Delete removes the blob at ragURI. Returns ErrNotFound if it does not exist.
func (a *Adapter) Delete(ctx context.Context, ragURI string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, ragURI, nil)
	return translateErr(err)
}

// List enumerates blobs whose name starts with prefix.
func (a *Adapter) List(ctx context.Context, prefix string) ([]ragsink.ArtifactInfo, error) {
	var out []ragsink.ArtifactInfo
	var opts azblob.ListBlobsFlatOptions
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}

	pager := a.client.NewListBlobsFlatPager(a.container, &opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translateErr(err)
		}
		for _, item := range page.Segment.BlobItems {
			info := ragsink.ArtifactInfo{RAGURI: *item.Name, Metadata: fromAzureMetadata(item.Metadata)}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				info.Size = *item.Properties.ContentLength
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// Get returns the metadata for the blob at ragURI, or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, ragURI string) (*ragsink.ArtifactInfo, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, ragURI, nil)
	if err != nil {
		return nil, translateErr(err)
	}
	defer resp.Body.Close()

	info := &ragsink.ArtifactInfo{RAGURI: ragURI, Metadata: fromAzureMetadata(resp.Metadata)}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	return info, nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return ragsink.ErrNotFound
	}
	return fmt.Errorf("%w: %v", ragsink.ErrAdapterUnavailable, err)
}

func toAzureMetadata(m ragsink.Metadata) map[string]*string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = to.Ptr(v)
	}
	return out
}

func fromAzureMetadata(m map[string]*string) ragsink.Metadata {
	out := make(ragsink.Metadata, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
