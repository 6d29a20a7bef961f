package security

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	v := NewValidator()
	ctx := context.Background()
	expected := HashBytes([]byte("%PDF-1.3 portaria"))

	info, err := v.Verify(ctx, strings.NewReader("%PDF-1.3 portaria"), strings.ToUpper(expected))
	require.NoError(t, err)
	assert.True(t, info.IsValid)
	assert.Equal(t, int64(17), info.SizeInBytes)

	info, err = v.Verify(ctx, strings.NewReader("%PDF-1.3 adulterada"), expected)
	require.NoError(t, err)
	assert.False(t, info.IsValid)

	info, err = v.Verify(ctx, strings.NewReader(""), "")
	require.NoError(t, err)
	assert.False(t, info.IsValid)
}
