package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "feeds/a.xml")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "feeds/a.xml", []byte("one"), "application/xml"))
	require.NoError(t, m.Put(ctx, "feeds/a.xml", []byte("two"), "application/xml"))
	got, err := m.Get(ctx, "feeds/a.xml")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
	assert.Equal(t, []string{"feeds/a.xml"}, m.Keys())
	assert.Equal(t, "application/xml", m.ContentType("feeds/a.xml"))

	_, err = m.PresignedURL(ctx, "feeds/a.xml", time.Minute)
	assert.ErrorIs(t, err, ErrPresignUnsupported)
}
