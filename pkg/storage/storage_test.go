package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient("")

	err := c.Upload(ctx, "portarias/sec-rh/2025/a.pdf", strings.NewReader("%PDF"), "application/pdf",
		map[string]string{"checksum-sha256": "abc"})
	require.NoError(t, err)

	rc, err := c.Download(ctx, "portarias/sec-rh/2025/a.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF", string(data))

	obj, ok := c.Object("portarias/sec-rh/2025/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "abc", obj.Metadata["checksum-sha256"])

	u, err := c.GetPresignedURL(ctx, "portarias/sec-rh/2025/a.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "memory://portarias/"))

	require.NoError(t, c.Delete(ctx, "portarias/sec-rh/2025/a.pdf"))
	_, err = c.Download(ctx, "portarias/sec-rh/2025/a.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryClientFailUploads(t *testing.T) {
	c := NewMemoryClient("")
	c.FailUploads = true

	err := c.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
