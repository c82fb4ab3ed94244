package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"
)

// errStatusNotFound wraps a Graph 404 response so translateFetchErr can
// distinguish "item no longer exists" (source.ErrNotFound, a concurrent
// deletion) from every other HTTP failure (source.ErrSourceUnavailable).
var errStatusNotFound = errors.New("graph: item not found")

// HTTPClient is the production Client implementation: it talks to the real
// Microsoft Graph REST API over net/http, authenticating via azidentity
// (reusing the same credential library internal/ragsink/azblob uses for
// Azure Blob Storage). Per spec §13 Non-goals its credential handling is
// intentionally minimal: it exchanges the tenant/client-secret (or falls back
// to DefaultAzureCredential) already present in the source-config blob for a
// bearer token; it does not discover, cache across processes, or rotate
// credentials beyond what azidentity itself does.
type HTTPClient struct {
	http *http.Client
	cred azcore.TokenCredential
	cfg  Config

	mu      sync.Mutex
	driveID string
}

// NewHTTPClient builds an HTTPClient from cfg.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	cred, err := newCredential(cfg)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	return &HTTPClient{
		http: &http.Client{Timeout: 30 * time.Second},
		cred: cred,
		cfg:  cfg,
	}, nil
}

func newCredential(cfg Config) (azcore.TokenCredential, error) {
	if cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

func (c *HTTPClient) token(ctx context.Context) (string, error) {
	tok, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
	if err != nil {
		return "", fmt.Errorf("graph: acquire token: %w", err)
	}
	return tok.Token, nil
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: request %s %s: %w", method, rawURL, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s %s: %s", errStatusNotFound, method, rawURL, string(body))
		}
		return nil, fmt.Errorf("graph: %s %s: %s: %s", method, rawURL, resp.Status, string(body))
	}
	return resp, nil
}

// DriveID resolves and caches the drive this client targets, per cfg: a
// SharePoint site's document library, or a user's OneDrive root.
func (c *HTTPClient) DriveID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.driveID != "" {
		id := c.driveID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	seg, err := c.driveSegment()
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodGet, graphBaseURL+"/"+seg)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("graph: decode drive response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("graph: drive response had no id")
	}

	c.mu.Lock()
	c.driveID = payload.ID
	c.mu.Unlock()
	return payload.ID, nil
}

func (c *HTTPClient) driveSegment() (string, error) {
	switch {
	case c.cfg.UserID != "":
		return "users/" + url.PathEscape(c.cfg.UserID) + "/drive", nil
	case c.cfg.SiteURL != "":
		return "sites/" + url.PathEscape(c.cfg.SiteURL) + "/drive", nil
	default:
		return "", fmt.Errorf("graph: source config has neither user_id nor site_url")
	}
}

func (c *HTTPClient) rootItemSegment(driveID string) string {
	root := strings.Trim(c.cfg.Path, "/")
	if root == "" {
		root = strings.Trim(c.cfg.RootFolder, "/")
	}
	if root == "" {
		return "drives/" + url.PathEscape(driveID) + "/root"
	}
	return "drives/" + url.PathEscape(driveID) + "/root:/" + escapeItemPath(root) + ":"
}

// driveItem mirrors the fields of a Microsoft Graph DriveItem this client
// reads; everything else in the response is ignored.
type driveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Size                 int64  `json:"size"`
	CreatedDateTime      string `json:"createdDateTime"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	File                 *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	Deleted *struct {
		State string `json:"state"`
	} `json:"deleted"`
	ParentReference *struct {
		Path string `json:"path"`
	} `json:"parentReference"`
}

func (it driveItem) fullPath() string {
	base := ""
	if it.ParentReference != nil {
		// Graph's parentReference.path looks like "/drive/root:/sub/folder";
		// keep everything after the first ":" as the parent's relative path.
		if idx := strings.Index(it.ParentReference.Path, ":"); idx >= 0 {
			base = strings.Trim(it.ParentReference.Path[idx+1:], "/")
		}
	}
	if base == "" {
		return it.Name
	}
	return base + "/" + it.Name
}

func (it driveItem) toItem() Item {
	item := Item{ID: it.ID, Path: it.fullPath(), Size: it.Size, IsFolder: it.Folder != nil}
	if it.File != nil {
		item.ContentType = it.File.MimeType
	}
	if t, err := time.Parse(time.RFC3339, it.CreatedDateTime); err == nil {
		item.CreatedAt = &t
	}
	if t, err := time.Parse(time.RFC3339, it.LastModifiedDateTime); err == nil {
		item.ModifiedAt = &t
	}
	return item
}

type driveItemPage struct {
	Value     []driveItem `json:"value"`
	NextLink  string      `json:"@odata.nextLink"`
	DeltaLink string      `json:"@odata.deltaLink"`
}

// ListAll walks the configured root's children, recursing into subfolders
// when cfg.Recursive is set.
func (c *HTTPClient) ListAll(ctx context.Context) ([]Item, error) {
	driveID, err := c.DriveID(ctx)
	if err != nil {
		return nil, err
	}

	var items []Item
	queue := []string{c.rootItemSegment(driveID) + "/children"}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, it := range page.Value {
			if it.Folder != nil {
				if c.cfg.Recursive {
					queue = append(queue, "drives/"+url.PathEscape(driveID)+"/items/"+url.PathEscape(it.ID)+"/children")
				}
				continue
			}
			items = append(items, it.toItem())
		}
		if page.NextLink != "" {
			queue = append([]string{page.NextLink}, queue...)
		}
	}
	return items, nil
}

// Delta follows Graph's delta query, paginating through @odata.nextLink and
// returning the final @odata.deltaLink as the next token.
func (c *HTTPClient) Delta(ctx context.Context, token string) (DeltaPage, error) {
	driveID, err := c.DriveID(ctx)
	if err != nil {
		return DeltaPage{}, err
	}

	next := token
	if next == "" {
		next = c.rootItemSegment(driveID) + "/delta"
	}

	var result DeltaPage
	for {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return DeltaPage{}, err
		}
		for _, it := range page.Value {
			if it.Deleted != nil {
				result.DeletedPaths = append(result.DeletedPaths, it.fullPath())
				continue
			}
			if it.Folder != nil {
				continue
			}
			result.Items = append(result.Items, it.toItem())
		}
		if page.NextLink != "" {
			next = page.NextLink
			continue
		}
		result.NextToken = page.DeltaLink
		return result, nil
	}
}

func (c *HTTPClient) fetchPage(ctx context.Context, rawURL string) (driveItemPage, error) {
	fullURL := rawURL
	if !strings.HasPrefix(fullURL, "http") {
		fullURL = graphBaseURL + "/" + fullURL
	}

	resp, err := c.do(ctx, http.MethodGet, fullURL)
	if err != nil {
		return driveItemPage{}, err
	}
	defer resp.Body.Close()

	var page driveItemPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return driveItemPage{}, fmt.Errorf("graph: decode page: %w", err)
	}
	return page, nil
}

// Download fetches originalURI's content from the configured drive.
func (c *HTTPClient) Download(ctx context.Context, originalURI string) ([]byte, string, error) {
	driveID, err := c.DriveID(ctx)
	if err != nil {
		return nil, "", err
	}

	rawURL := graphBaseURL + "/drives/" + url.PathEscape(driveID) + "/root:/" + escapeItemPath(originalURI) + ":/content"
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("graph: read content: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// escapeItemPath percent-encodes each path segment of a Graph item path
// reference without escaping the "/" separators themselves.
func escapeItemPath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
