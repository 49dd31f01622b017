package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradewatch/config"
)

func newTestStore(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	c, err := NewClient(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSetRoundTrip(t *testing.T) {
	c := newTestStore(t)
	ctx := context.Background()

	assert.True(t, c.IsEnabled())

	value, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, value, "missing key reads as empty")

	require.NoError(t, c.Set(ctx, "key", "value"))
	value, err = c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	require.NoError(t, c.Set(ctx, "key", "updated"))
	value, err = c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "updated", value)
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestStore(t)
	ctx := context.Background()

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.SaveJSON(ctx, "records", []record{{Name: "a", Count: 1}, {Name: "b", Count: 2}}))

	var loaded []record
	require.NoError(t, c.LoadJSON(ctx, "records", &loaded))
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[0].Name)
	assert.Equal(t, 2, loaded[1].Count)
}

func TestLoadJSONMissingKeyLeavesDestUntouched(t *testing.T) {
	c := newTestStore(t)

	loaded := []string{"sentinel"}
	require.NoError(t, c.LoadJSON(context.Background(), "missing", &loaded))
	assert.Equal(t, []string{"sentinel"}, loaded)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := NewClient(zap.NewNop(), cfg)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "key", "survives"))
	require.NoError(t, first.Close())

	second, err := NewClient(zap.NewNop(), cfg)
	require.NoError(t, err)
	defer second.Close()

	value, err := second.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "survives", value)
}

func TestDisabledStore(t *testing.T) {
	cfg := &config.Config{}
	c, err := NewClient(zap.NewNop(), cfg)
	require.NoError(t, err)

	assert.False(t, c.IsEnabled())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value"))
	value, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Empty(t, value)
	require.NoError(t, c.Close())
}
