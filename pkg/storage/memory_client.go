package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Object is a stored blob with its metadata.
type Object struct {
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// MemoryClient keeps objects in process memory. Used in development and tests.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	// FailUploads makes every upload return an error.
	FailUploads bool
}

func NewMemoryClient(baseURL string) *MemoryClient {
	if baseURL == "" {
		baseURL = "memory://portarias"
	}
	return &MemoryClient{objects: make(map[string]Object), baseURL: baseURL}
}

func (c *MemoryClient) Upload(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailUploads {
		return fmt.Errorf("failed to upload %s: storage unavailable", key)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	c.objects[key] = Object{Body: data, ContentType: contentType, Metadata: meta}
	return nil
}

func (c *MemoryClient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.Body)), nil
}

func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}

func (c *MemoryClient) GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.objects[key]; !ok {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	expires := time.Now().Add(expiration).Unix()
	return fmt.Sprintf("%s/%s?expires=%d", c.baseURL, url.PathEscape(key), expires), nil
}

// Object returns a stored object.
func (c *MemoryClient) Object(key string) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}
