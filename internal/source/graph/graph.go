// Package graph implements the source adapter shared by sharepoint,
// enterprise_sharepoint, and onedrive: all three are Microsoft Graph document
// libraries/drives addressed the same way, differing only in how their
// drive_id is resolved (a SharePoint site's default document library, an
// enterprise SharePoint path, or a user's OneDrive root).
//
// The wire protocol itself is out of scope (spec §1); this package depends on
// an injected Client interface rather than making HTTP calls directly, so a
// production implementation can supply real Graph API plumbing while tests use
// a fake.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kbsync/kbsync/internal/source"
	"github.com/kbsync/kbsync/internal/source/filter"
)

// AccountType distinguishes a business (SharePoint-backed) OneDrive from a
// personal Microsoft account drive; Client implementations may need this to
// pick the right Graph endpoint.
type AccountType string

const (
	AccountTypeBusiness AccountType = "business"
	AccountTypePersonal AccountType = "personal"
)

// Config is the decoded source_config blob shared by source_type_tag values
// "sharepoint", "enterprise_sharepoint", and "onedrive".
type Config struct {
	// SharePoint / enterprise_sharepoint fields.
	SiteURL string `mapstructure:"site_url" json:"site_url"`
	Path    string `mapstructure:"path" json:"path"`

	// OneDrive fields.
	UserID      string      `mapstructure:"user_id" json:"user_id"`
	RootFolder  string      `mapstructure:"root_folder" json:"root_folder"`
	AccountType AccountType `mapstructure:"account_type" json:"account_type"`

	Recursive bool `mapstructure:"recursive" json:"recursive"`

	// Credentials. Either tenant/client/secret (service principal) or
	// username/password may be supplied; Client implementations decide which
	// they accept. The engine never inspects these beyond passing them to the
	// injected Client factory — see spec §13.
	TenantID     string `mapstructure:"tenant_id" json:"tenant_id"`
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret"`
	Username     string `mapstructure:"username" json:"username"`
	Password     string `mapstructure:"password" json:"password"`

	IncludePatterns   []string `mapstructure:"include_patterns" json:"include_patterns"`
	ExcludePatterns   []string `mapstructure:"exclude_patterns" json:"exclude_patterns"`
	IncludeExtensions []string `mapstructure:"include_extensions" json:"include_extensions"`
	ExcludeExtensions []string `mapstructure:"exclude_extensions" json:"exclude_extensions"`

	// RateLimitPerSecond bounds outbound Graph calls per drive; zero selects
	// DefaultRateLimitPerSecond.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" json:"rate_limit_per_second"`
}

// DefaultRateLimitPerSecond is the fallback per-drive Graph request budget
// when a source-config does not set rate_limit_per_second.
const DefaultRateLimitPerSecond = 10.0

// DefaultRateLimitBurst is the token bucket burst size for the per-drive
// limiter.
const DefaultRateLimitBurst = 20

// Item is one file or folder entry as returned by a Graph drive listing.
type Item struct {
	ID               string
	Path             string // full path relative to the drive root
	Size             int64
	ContentType      string
	IsFolder         bool
	CreatedAt        *time.Time
	ModifiedAt       *time.Time
}

// DeltaPage is one page of a Graph delta query: items changed since the
// previous token, plus deleted item IDs (Graph reports deletions as items
// carrying a "deleted" facet rather than a separate list; Client flattens that
// into DeletedPaths for the adapter).
type DeltaPage struct {
	Items        []Item
	DeletedPaths []string
	NextToken    string
}

// Client is the capability a concrete Graph HTTP implementation provides. It
// is resolved once per drive_id; the adapter is the only caller and serializes
// its own rate limiting on top, so Client implementations do not need to be
// internally rate-limited.
type Client interface {
	// DriveID resolves the drive this Client talks to, used as the delta-token
	// manager's (source_id, drive_id) key.
	DriveID(ctx context.Context) (string, error)

	// ListAll returns every non-folder item under the configured root (a full
	// listing, used when no delta token is available).
	ListAll(ctx context.Context) ([]Item, error)

	// Delta returns changes since token ("" means from the beginning).
	Delta(ctx context.Context, token string) (DeltaPage, error)

	// Download returns the byte stream for the item at path.
	Download(ctx context.Context, path string) (content []byte, contentType string, err error)
}

// Adapter is a source.Adapter (and source.DeltaCapable) backed by a Client.
type Adapter struct {
	client    Client
	filter    *filter.Filter
	limiter   *driveLimiter
	sourceTag string
}

// New constructs an Adapter. sourceTag is the concrete source_type_tag
// ("sharepoint", "enterprise_sharepoint", or "onedrive") used only for error
// messages and logging context.
func New(sourceTag string, cfg Config, client Client) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("graph: client is required")
	}

	f, err := filter.New(filter.Config{
		IncludePatterns:   cfg.IncludePatterns,
		ExcludePatterns:   cfg.ExcludePatterns,
		IncludeExtensions: cfg.IncludeExtensions,
		ExcludeExtensions: cfg.ExcludeExtensions,
	})
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	perSecond := cfg.RateLimitPerSecond
	if perSecond <= 0 {
		perSecond = DefaultRateLimitPerSecond
	}

	return &Adapter{
		client:    client,
		filter:    f,
		limiter:   newDriveLimiter(perSecond, DefaultRateLimitBurst),
		sourceTag: sourceTag,
	}, nil
}

// DriveID returns the underlying drive's identifier, implementing
// source.DriveIdentifiable so the orchestrator can key delta tokens by
// (source_id, drive_id) (spec §4.7).
func (a *Adapter) DriveID(ctx context.Context) (string, error) {
	id, err := a.client.DriveID(ctx)
	if err != nil {
		return "", translateClientErr(err)
	}
	return id, nil
}

// List produces a full listing via Client.ListAll, filtered.
func (a *Adapter) List(ctx context.Context) ([]source.Descriptor, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	items, err := a.client.ListAll(ctx)
	if err != nil {
		return nil, translateClientErr(err)
	}

	return a.toDescriptors(items), nil
}

// DeltaList returns descriptors changed since token, classifying present items
// as candidates and reporting deletions as tombstones (spec §4.1).
func (a *Adapter) DeltaList(ctx context.Context, token string) ([]source.Descriptor, string, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, "", err
	}

	page, err := a.client.Delta(ctx, token)
	if err != nil {
		return nil, "", translateClientErr(err)
	}

	descriptors := a.toDescriptors(page.Items)
	for _, p := range page.DeletedPaths {
		descriptors = append(descriptors, source.Descriptor{
			OriginalURI: source.NormalizeURI(p),
			Tombstone:   true,
		})
	}
	return descriptors, page.NextToken, nil
}

// Fetch downloads originalURI's content.
func (a *Adapter) Fetch(ctx context.Context, originalURI string) (*source.Content, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	data, contentType, err := a.client.Download(ctx, originalURI)
	if err != nil {
		return nil, translateFetchErr(err)
	}

	return &source.Content{
		Reader:      newByteReadCloser(data),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (a *Adapter) toDescriptors(items []Item) []source.Descriptor {
	var out []source.Descriptor
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		relPath := source.NormalizeURI(item.Path)
		if !a.filter.Allow(relPath) {
			continue
		}
		out = append(out, source.Descriptor{
			OriginalURI:      relPath,
			Size:             item.Size,
			ContentType:      item.ContentType,
			SourceCreatedAt:  item.CreatedAt,
			SourceModifiedAt: item.ModifiedAt,
		})
	}
	return out
}

func translateClientErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
}

// translateFetchErr is translateClientErr's Fetch-specific counterpart: a 404
// from Download means the item was concurrently deleted between listing and
// fetch, which the processor must treat as ErrNotFound (not retryable)
// rather than ErrSourceUnavailable (retried with backoff). A 404 from
// DriveID/List/DeltaList has no such meaning — those keep translateClientErr.
func translateFetchErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errStatusNotFound) {
		return fmt.Errorf("%w: %v", source.ErrNotFound, err)
	}
	return translateClientErr(err)
}

// driveLimiter is a single-drive token-bucket limiter, the per-drive analog of
// the teacher's per-IP rateLimiter (internal/api/ratelimit.go): one limiter
// here instead of a map of them, since an Adapter is constructed per drive.
type driveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newDriveLimiter(perSecond float64, burst int) *driveLimiter {
	return &driveLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (d *driveLimiter) wait(ctx context.Context) error {
	d.mu.Lock()
	limiter := d.limiter
	d.mu.Unlock()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", source.ErrTransient, err)
	}
	return nil
}
