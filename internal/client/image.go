package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/erauner12/gamesdb/internal/catalog"
)

// ImageCache stores image bytes by key. Implementations must be safe for
// concurrent use.
type ImageCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
}

// MemoryCache keeps every image for the life of the process. It never evicts.
type MemoryCache struct {
	entries sync.Map
	count   atomic.Int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *MemoryCache) Set(key string, data []byte) {
	if _, loaded := c.entries.LoadOrStore(key, data); !loaded {
		c.count.Add(1)
	}
}

// Len is the number of cached images
func (c *MemoryCache) Len() int {
	return int(c.count.Load())
}

// ImageFetcher downloads images from the CDN, optionally through a cache
type ImageFetcher struct {
	http    *HTTPClient
	baseURL *url.URL
	cache   ImageCache // nil disables caching
}

// NewImageFetcher creates a fetcher for the CDN rooted at baseURL. cache may be nil.
func NewImageFetcher(httpClient *HTTPClient, baseURL string, cache ImageCache) (*ImageFetcher, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &ImageFetcher{http: httpClient, baseURL: u, cache: cache}, nil
}

// URL returns the CDN location of an image: <base>/t_<size>/<id>.jpg
func (f *ImageFetcher) URL(imageID string, size catalog.ImageSize) (string, error) {
	if imageID == "" || strings.ContainsAny(imageID, "/?#\\") || imageID == "." || imageID == ".." {
		return "", fmt.Errorf("%w: image id %q", ErrInvalidURL, imageID)
	}
	if !size.Valid() {
		return "", fmt.Errorf("%w: image size %q", ErrInvalidURL, size)
	}
	return f.baseURL.JoinPath("t_"+string(size), imageID+".jpg").String(), nil
}

// Fetch returns the image bytes for imageID at size
func (f *ImageFetcher) Fetch(ctx context.Context, imageID string, size catalog.ImageSize) ([]byte, error) {
	location, err := f.URL(imageID, size)
	if err != nil {
		return nil, err
	}
	return f.fetch(ctx, string(size)+"/"+imageID, location)
}

// FetchURL returns the image bytes at an absolute URL
func (f *ImageFetcher) FetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return f.fetch(ctx, u.String(), u.String())
}

func (f *ImageFetcher) fetch(ctx context.Context, key, location string) ([]byte, error) {
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, location, err)
	}

	resp, err := f.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, URL: location, StatusCode: resp.StatusCode, Err: err}
	}

	if f.cache != nil {
		f.cache.Set(key, data)
	}
	return data, nil
}
